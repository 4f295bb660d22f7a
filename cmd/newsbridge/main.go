// Package main is the entry point for the newsbridge CLI.
package main

import (
	"os"
	_ "time/tzdata"

	"github.com/jmylchreest/newsbridge/cmd/newsbridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
