package main

import (
	"os"

	"github.com/wegman-software/osmedit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
