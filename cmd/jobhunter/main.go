// Package main is the entrypoint for the jobhunter operator CLI.
package main

import (
	"os"

	"github.com/kiranshivaraju/jobhunter/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
