// Package main is the entry point for the scrapeycat CLI.
package main

import (
	"os"

	"github.com/mkforsb/scrapeycat/cmd/scrapeycat/commands"
)

func main() {
	os.Exit(commands.Execute())
}
