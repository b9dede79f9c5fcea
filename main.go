package main

import (
	"os"

	"yelp-scraper/utils"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		utils.Error("%v", err)
		os.Exit(1)
	}
}
