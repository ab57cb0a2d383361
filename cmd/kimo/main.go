/*
Package main is the entry point for the kimo CLI.

kimo is a local-first search companion: it merges results from public
search backends and re-ranks them against a time-decayed history of your
own clicks, dwell time, bookmarks, shares and searches. The history never
leaves the machine.

Usage:

	kimo [command]

Available Commands:

	serve       Run the local HTTP API
	search      Search and personalize
	rank        Personalize a JSON result list
	track       Record an interaction
	summarize   Summarize text
	profile     Show the derived interest profile
	sweep       Apply the retention window now
	cache       Inspect the expiring cache
	history     Export or clear history
	config      Create or inspect configuration
	version     Show version information

A .env file in the working directory is loaded before configuration, so
KIMO_* variables can live there.
*/
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/khanglvm/kimo/internal/cli"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
