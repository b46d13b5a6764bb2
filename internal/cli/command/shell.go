package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/diskcache-go/internal/cli/repl"
	"github.com/yndnr/diskcache-go/internal/core/service"
)

// shellExcluded lists commands that cannot run inside the shell.
var shellExcluded = map[string]bool{
	"serve": true,
	"shell": true,
}

// ShellCommand returns the shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively against one open cache",
		Description: "Reads commands such as 'put KEY VALUE' or 'get KEY' line by line. " +
			"The cache is opened once and held until exit. Values cannot be read " +
			"from standard input inside the shell.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "History file; empty keeps history in memory",
				Value: repl.DefaultHistoryFile(),
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	svc, closeCache, err := openCache(c, nil)
	if err != nil {
		return err
	}
	defer closeCache()

	log := loggerFrom(c)

	history := repl.NewHistory(c.String("history"), repl.DefaultHistorySize)
	if err := history.Load(); err != nil {
		log.Warn("history not loaded", "error", err)
	}

	r := repl.New(shellExecutor(c, svc),
		repl.WithIO(c.App.Reader, outWriter(c)),
		repl.WithCompleter(repl.NewCompleter(shellCommands())),
		repl.WithHistory(history),
	)
	runErr := r.Run(c.Context)

	if err := history.Save(); err != nil {
		log.Warn("history not saved", "error", err)
	}
	return runErr
}

// shellCommands returns the command names and aliases usable in the shell.
func shellCommands() []string {
	var names []string
	for _, cmd := range App().Commands {
		if shellExcluded[cmd.Name] {
			continue
		}
		names = append(names, cmd.Names()...)
	}
	return append(names, "help")
}

// shellExecutor runs each line as a fresh App invocation sharing svc and
// the global flags of the shell.
func shellExecutor(parent *cli.Context, svc *service.CacheService) repl.Executor {
	global := shellGlobalArgs(parent)

	return func(ctx context.Context, args []string) error {
		if shellExcluded[args[0]] {
			return fmt.Errorf("%s is not available in the shell", args[0])
		}

		app := App()
		app.Writer = parent.App.Writer
		app.ErrWriter = parent.App.ErrWriter
		app.Reader = strings.NewReader("")
		app.Metadata[metaCache] = svc

		argv := append([]string{app.Name}, global...)
		argv = append(argv, args...)
		return app.RunContext(ctx, argv)
	}
}

// shellGlobalArgs reproduces the explicitly set global flags.
func shellGlobalArgs(c *cli.Context) []string {
	f := ParseGlobalFlags(c)
	args := []string{"--output", f.Output}
	if f.Config != "" {
		args = append(args, "--config", f.Config)
	}
	if c.IsSet("dir") {
		args = append(args, "--dir", f.Dir)
	}
	if c.IsSet("max-size") {
		args = append(args, "--max-size", f.MaxSize)
	}
	if f.Verbose {
		args = append(args, "--verbose")
	}
	return args
}
