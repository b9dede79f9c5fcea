package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errDeclined = errors.New("confirm failed, exiting")

// confirm asks a yes/no question until it gets an answer. An empty answer,
// or end of input, takes def.
func confirm(in *bufio.Reader, out io.Writer, prompt string, def bool) (bool, error) {
	choices := "[y/N]"
	if def {
		choices = "[Y/n]"
	}

	for {
		fmt.Fprintf(out, "%s %s ", prompt, choices)

		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read confirmation: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(line))

		switch {
		case answer == "":
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
			}
			return def, nil
		case answer == "y":
			return true, nil
		case answer == "n":
			return false, nil
		}

		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return def, nil
		}
		fmt.Fprintln(out, "Invalid input. Please enter 'y' or 'n'.")
	}
}
