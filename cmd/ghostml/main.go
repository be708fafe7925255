package main

import (
	"errors"
	"os"

	"github.com/hed1ad/ghostml/cmd/ghostml/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		if errors.Is(err, commands.ErrAnomaliesFound) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
