// Package main provides the lumina command: a browser automation engine
// that plans goals into tool calls and runs them against a page, either
// one-shot from the terminal or as a local service driven over HTTP.
package main

import (
	"os"
)

const version = "0.1.0"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
