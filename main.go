package main

import (
	"os"

	"github.com/abhisek/mindscale/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
