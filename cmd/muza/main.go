package main

import (
	"os"

	"github.com/lazypower/muza/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
