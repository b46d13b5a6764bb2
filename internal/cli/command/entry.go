package command

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/diskcache-go/internal/cli/output"
	"github.com/yndnr/diskcache-go/internal/core/service"
	"github.com/yndnr/diskcache-go/pkg/keycodec"
)

// EntryResult describes one key in command output.
type EntryResult struct {
	Key        string `json:"key" yaml:"key"`
	Identifier string `json:"id" yaml:"id"`
	Value      string `json:"value,omitempty" yaml:"value,omitempty" table:"-"`
	Size       int64  `json:"size" yaml:"size" table:"bytes"`
	TTL        string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	Removed    *bool  `json:"removed,omitempty" yaml:"removed,omitempty"`
}

// PutCommand returns the put command.
func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Aliases:   []string{"set"},
		Usage:     "Store a value",
		ArgsUsage: "KEY [VALUE|-]",
		Description: "Stores VALUE under KEY. Without VALUE, or with -, the value is read " +
			"from standard input.",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Time to live; 0 never expires",
			},
		},
		Action: putAction,
	}
}

func putAction(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.Exit("usage: put KEY [VALUE|-]", 1)
	}
	key := c.Args().Get(0)

	var src io.Reader
	if c.NArg() == 2 && c.Args().Get(1) != "-" {
		src = bytes.NewReader([]byte(c.Args().Get(1)))
	} else {
		src = c.App.Reader
	}

	ttl := c.Duration("ttl")
	return withCache(c, func(svc *service.CacheService) error {
		if err := svc.PutReader(key, src, ttl); err != nil {
			return err
		}
		loggerFrom(c).Debug("value stored", "id", keycodec.Normalize(key), "ttl", ttl)
		return nil
	})
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print a value",
		ArgsUsage: "KEY",
		Description: "Writes the raw value to standard output. With --output json or yaml " +
			"the value is wrapped in a document with its identifier and remaining TTL.",
		Action: getAction,
	}
}

func getAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: get KEY", 1)
	}
	key := c.Args().First()

	return withCache(c, func(svc *service.CacheService) error {
		value, ok, err := svc.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}

		format, err := output.ParseFormat(c.String("output"))
		if err != nil {
			return err
		}
		if format == output.FormatTable {
			_, err := outWriter(c).Write(value)
			return err
		}

		res := EntryResult{
			Key:        key,
			Identifier: keycodec.Normalize(key),
			Value:      string(value),
			Size:       int64(len(value)),
		}
		if ttl, ok, err := svc.TTL(key); err == nil && ok {
			res.TTL = formatTTL(ttl)
		}
		return printResult(c, res)
	})
}

// RemoveCommand returns the rm command.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"del"},
		Usage:     "Remove keys",
		ArgsUsage: "KEY...",
		Action:    removeAction,
	}
}

func removeAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("usage: rm KEY...", 1)
	}

	return withCache(c, func(svc *service.CacheService) error {
		results := make([]EntryResult, 0, c.NArg())
		for _, key := range c.Args().Slice() {
			removed, err := svc.Remove(key)
			if err != nil {
				return fmt.Errorf("remove %q: %w", key, err)
			}
			results = append(results, EntryResult{
				Key:        key,
				Identifier: keycodec.Normalize(key),
				Removed:    &removed,
			})
		}
		return printResult(c, results)
	})
}

// TTLCommand returns the ttl command.
func TTLCommand() *cli.Command {
	return &cli.Command{
		Name:      "ttl",
		Usage:     "Show the remaining lifetime of a key",
		ArgsUsage: "KEY",
		Action:    ttlAction,
	}
}

func ttlAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ttl KEY", 1)
	}
	key := c.Args().First()

	return withCache(c, func(svc *service.CacheService) error {
		ttl, ok, err := svc.TTL(key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return printResult(c, EntryResult{
			Key:        key,
			Identifier: keycodec.Normalize(key),
			TTL:        formatTTL(ttl),
		})
	})
}

func formatTTL(ttl time.Duration) string {
	if ttl == 0 {
		return "never"
	}
	return ttl.Truncate(time.Millisecond).String()
}

// ListCommand returns the ls command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List stored identifiers, least recently used first",
		Description: "Keys are stored under their SHA-256 identifier and cannot be " +
			"recovered, so ls prints identifiers.",
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	return withCache(c, func(svc *service.CacheService) error {
		return printResult(c, svc.Store().Identifiers())
	})
}
