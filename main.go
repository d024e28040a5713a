package main

import (
	"os"

	"github.com/srkgupta/dependency-track-gate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
