// Package config reads process settings from flags and the environment.
package config

import (
	"flag"
	"fmt"
	"io"
)

// Config holds the server settings.
type Config struct {
	DBPath    string
	Addr      string
	LogPath   string
	RedisAddr string
	Seed      bool
}

const usage = `Usage: integration-api [flags]

Flags:
  -d, -db <path>          SQLite database path (env ITEMS_DB, default: integration.db)
  -a, -addr <host:port>   listen address (env ITEMS_ADDR, default: :8000)
  -l, -log <path>         log file path (env ITEMS_LOG, default: stdout/stderr only)
  -redis <host:port>      Redis address for the item cache (env REDIS_ADDR, default: disabled)
  -seed                   insert demo items when the database is created
  -h, -help               show this help and exit
`

// Load parses args (without the program name). Environment values, looked up
// through getenv, replace the built-in defaults; flags override both.
// Returns flag.ErrHelp when help was requested.
func Load(args []string, getenv func(string) string, output io.Writer) (Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	var cfg Config
	fs := flag.NewFlagSet("integration-api", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { fmt.Fprint(output, usage) }

	dbDefault := env("ITEMS_DB", "integration.db")
	fs.StringVar(&cfg.DBPath, "db", dbDefault, "")
	fs.StringVar(&cfg.DBPath, "d", dbDefault, "")

	addrDefault := env("ITEMS_ADDR", ":8000")
	fs.StringVar(&cfg.Addr, "addr", addrDefault, "")
	fs.StringVar(&cfg.Addr, "a", addrDefault, "")

	logDefault := env("ITEMS_LOG", "")
	fs.StringVar(&cfg.LogPath, "log", logDefault, "")
	fs.StringVar(&cfg.LogPath, "l", logDefault, "")

	fs.StringVar(&cfg.RedisAddr, "redis", env("REDIS_ADDR", ""), "")
	fs.BoolVar(&cfg.Seed, "seed", false, "")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if cfg.DBPath == "" {
		return Config{}, fmt.Errorf("database path must not be empty")
	}
	return cfg, nil
}
