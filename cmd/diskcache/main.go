package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/diskcache-go/internal/cli/command"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := command.App()

	if err := app.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

		var coder cli.ExitCoder
		if errors.As(err, &coder) && coder.ExitCode() != 0 {
			return coder.ExitCode()
		}
		return 1
	}
	return 0
}
