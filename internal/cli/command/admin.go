package command

import (
	"encoding/hex"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/diskcache-go/internal/core/service"
	"github.com/yndnr/diskcache-go/internal/storage/transform"
)

// StatCommand returns the stat command.
func StatCommand() *cli.Command {
	return &cli.Command{
		Name:   "stat",
		Usage:  "Show store statistics",
		Action: statAction,
	}
}

func statAction(c *cli.Context) error {
	return withCache(c, func(svc *service.CacheService) error {
		return printResult(c, svc.Store().Stats())
	})
}

// EvictAllResult reports the outcome of evict-all.
type EvictAllResult struct {
	Evicted   int   `json:"evicted" yaml:"evicted"`
	Reclaimed int64 `json:"reclaimed" yaml:"reclaimed" table:"bytes"`
}

// EvictAllCommand returns the evict-all command.
func EvictAllCommand() *cli.Command {
	return &cli.Command{
		Name:  "evict-all",
		Usage: "Remove every entry",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Do not ask for confirmation",
			},
		},
		Action: evictAllAction,
	}
}

func evictAllAction(c *cli.Context) error {
	if !c.Bool("yes") {
		return cli.Exit("evict-all deletes every entry; rerun with --yes to confirm", 1)
	}

	return withCache(c, func(svc *service.CacheService) error {
		st := svc.Store().Stats()
		if err := svc.EvictAll(); err != nil {
			return err
		}
		loggerFrom(c).Info("cache cleared", "dir", st.Dir, "entries", st.Entries)
		return printResult(c, EvictAllResult{Evicted: st.Entries, Reclaimed: st.Size})
	})
}

// KeygenResult holds freshly generated key material, hex encoded.
type KeygenResult struct {
	Key  string `json:"key" yaml:"key"`
	Salt string `json:"salt" yaml:"salt"`
}

// KeygenCommand returns the keygen command.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate an encryption key and salt",
		Description: "Prints a random key for encryption.key and a random salt for " +
			"encryption.salt (used with encryption.passphrase).",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "bytes",
				Usage: "Key length in bytes",
				Value: 32,
			},
		},
		Action: keygenAction,
	}
}

func keygenAction(c *cli.Context) error {
	key, err := transform.GenerateKey(c.Int("bytes"))
	if err != nil {
		return err
	}
	defer transform.ZeroKey(key)

	salt, err := transform.GenerateSalt()
	if err != nil {
		return err
	}

	return printResult(c, KeygenResult{
		Key:  hex.EncodeToString(key),
		Salt: hex.EncodeToString(salt),
	})
}
