package main

import (
	"os"

	"github.com/wyeliu/stockradar/cmd/radar/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
