package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func colorizeRunning(running bool, colorize bool) string {
	label := yesNo(running)
	if !colorize {
		return label
	}
	if running {
		return ansiGreen + label + ansiReset
	}
	return ansiRed + label + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
