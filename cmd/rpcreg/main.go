package main

import (
	"os"

	"rpcreg/cmd/rpcreg/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
