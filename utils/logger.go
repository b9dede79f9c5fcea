package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ANSI colour codes
const (
	reset   = "\033[0m"
	red     = "\033[31m"
	green   = "\033[32m"
	yellow  = "\033[33m"
	blue    = "\033[34m"
	magenta = "\033[35m"
	cyan    = "\033[36m"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stdout
	colored           = true
	debug             = false
)

// SetOutput redirects all log lines. Colour codes are dropped unless the
// writer is the process stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	colored = w == os.Stdout
}

// SetDebug toggles Debug lines.
func SetDebug(on bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = on
}

func ts() string {
	return time.Now().Format("15:04:05")
}

func logf(color, level, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	if !colored {
		fmt.Fprintf(out, "[%s] %s %s\n", ts(), level, msg)
		return
	}
	fmt.Fprintf(out, "%s[%s] %s %s%s\n", color, ts(), level, msg, reset)
}

func Debug(format string, a ...interface{}) {
	mu.Lock()
	on := debug
	mu.Unlock()
	if on {
		logf(magenta, "[DEBUG]", format, a...)
	}
}

func Info(format string, a ...interface{}) {
	logf(blue, "[INFO] ", format, a...)
}

func Success(format string, a ...interface{}) {
	logf(green, "[OK]   ", format, a...)
}

func Warn(format string, a ...interface{}) {
	logf(yellow, "[WARN] ", format, a...)
}

func Error(format string, a ...interface{}) {
	logf(red, "[ERROR]", format, a...)
}

func Section(title string) {
	mu.Lock()
	defer mu.Unlock()
	if !colored {
		fmt.Fprintf(out, "\n[%s] ══════════ %s ══════════\n\n", ts(), title)
		return
	}
	fmt.Fprintf(out, "\n%s[%s] ══════════ %s ══════════%s\n\n", cyan, ts(), title, reset)
}
