package command

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/diskcache-go/internal/cli/output"
	"github.com/yndnr/diskcache-go/internal/config"
	"github.com/yndnr/diskcache-go/internal/core/service"
	"github.com/yndnr/diskcache-go/internal/infra/buildinfo"
	"github.com/yndnr/diskcache-go/internal/storage/journal"
	"github.com/yndnr/diskcache-go/internal/telemetry/logger"
	"github.com/yndnr/diskcache-go/internal/telemetry/metric"
)

// Metadata keys set by the Before hook.
const (
	metaConfig    = "config"
	metaOverrides = "overrides"
	metaLogger    = "logger"
	metaCache     = "cache"
)

// ErrNotFound is returned (exit status 2) when a key is absent.
var ErrNotFound = cli.Exit("not found", 2)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "diskcache",
		Usage:                "Persistent size-bounded disk cache",
		Version:              buildinfo.Get(journal.FormatVersion).Version,
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			PutCommand(),
			GetCommand(),
			RemoveCommand(),
			TTLCommand(),
			ListCommand(),
			StatCommand(),
			EvictAllCommand(),
			KeygenCommand(),
			ConfigCommand(),
			ServeCommand(),
			ShellCommand(),
			VersionCommand(),
		},
		Metadata: make(map[string]any),
		Before:   setup,
		// Errors are returned to main, which picks the exit status.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"DISKCACHE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Cache directory (overrides cache.dir)",
		},
		&cli.StringFlag{
			Name:  "max-size",
			Usage: "Size ceiling such as 512MiB (overrides cache.max_size)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log at debug level",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config  string
	Dir     string
	MaxSize string
	Output  string
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:  c.String("config"),
		Dir:     c.String("dir"),
		MaxSize: c.String("max-size"),
		Output:  c.String("output"),
		Verbose: c.Bool("verbose"),
	}
}

// overrides maps explicitly set flags onto configuration keys.
func (f *GlobalFlags) overrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	if c.IsSet("dir") {
		m["cache.dir"] = f.Dir
	}
	if c.IsSet("max-size") {
		m["cache.max_size"] = f.MaxSize
	}
	if f.Verbose {
		m["log.level"] = "debug"
	}
	return m
}

// setup loads the configuration and builds the logger.
func setup(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	if _, err := output.ParseFormat(flags.Output); err != nil {
		return err
	}

	overrides := flags.overrides(c)
	cfg, err := config.Load(flags.Config, overrides)
	if err != nil {
		return err
	}

	lc := cfg.LoggerConfig()
	lc.Output = errWriter(c)
	log, err := logger.New(lc)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaOverrides] = overrides
	c.App.Metadata[metaLogger] = log
	return nil
}

func configFrom(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[metaConfig].(*config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func loggerFrom(c *cli.Context) logger.Logger {
	if l, ok := c.App.Metadata[metaLogger].(logger.Logger); ok {
		return l
	}
	return logger.Default()
}

func overridesFrom(c *cli.Context) map[string]any {
	m, _ := c.App.Metadata[metaOverrides].(map[string]any)
	return m
}

func outWriter(c *cli.Context) io.Writer {
	return c.App.Writer
}

func errWriter(c *cli.Context) io.Writer {
	return c.App.ErrWriter
}

// printResult formats data with the --output format.
func printResult(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(outWriter(c), data)
}

// openCache opens the configured store. The returned function closes it
// and wipes key material.
func openCache(c *cli.Context, reg *metric.Registry) (*service.CacheService, func() error, error) {
	cfg, err := configFrom(c)
	if err != nil {
		return nil, nil, err
	}
	log := loggerFrom(c)

	provider, err := cfg.KeyProvider()
	if err != nil {
		return nil, nil, fmt.Errorf("encryption: %w", err)
	}

	sc, err := cfg.StoreConfig(provider, log.Slog(), reg)
	if err != nil {
		if provider != nil {
			provider.Close()
		}
		return nil, nil, err
	}

	svc, err := service.OpenCache(sc, service.WithLogger(log.Slog()), service.WithMetrics(reg))
	if err != nil {
		if provider != nil {
			provider.Close()
		}
		return nil, nil, fmt.Errorf("open cache %s: %w", sc.Dir, err)
	}

	closeFn := func() error {
		err := svc.Close()
		if provider != nil {
			provider.Close()
		}
		return err
	}
	return svc, closeFn, nil
}

// withCache runs fn against an open cache and closes it afterwards. Inside
// the shell the cache it holds open is used instead.
func withCache(c *cli.Context, fn func(*service.CacheService) error) (err error) {
	if svc, ok := c.App.Metadata[metaCache].(*service.CacheService); ok {
		return fn(svc)
	}

	svc, closeFn, err := openCache(c, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(svc)
}
