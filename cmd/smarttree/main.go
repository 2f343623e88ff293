// Package main is the entry point for the stree CLI tool.
package main

import (
	"os"

	"github.com/smarttree/smarttree/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
