package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/diskcache-go/internal/cli/output"
	"github.com/yndnr/diskcache-go/internal/infra/buildinfo"
	"github.com/yndnr/diskcache-go/internal/storage/journal"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show build information",
		Action: versionAction,
	}
}

func versionAction(c *cli.Context) error {
	info := buildinfo.Get(journal.FormatVersion)

	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		fmt.Fprintf(outWriter(c), "diskcache %s\n", info)
		return nil
	}
	return printResult(c, info)
}
