package main

import (
	"fmt"
	"os"

	"github.com/roach88/quarry/internal/cli"
	"github.com/roach88/quarry/internal/logger"
)

func main() {
	err := cli.NewRootCommand().Execute()
	logger.Sync()
	if err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.ExitStatus(err))
	}
}
