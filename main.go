package main

import (
	"os"

	"github.com/prasannaganesan/interior-design-app/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
