// Package main is the entry point for flok.
package main

import (
	"os"

	"github.com/dshills/flok/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stderr))
}
