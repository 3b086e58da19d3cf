// Command tez runs the Tez HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/Amogh-2404/Tez/app"
	"github.com/Amogh-2404/Tez/config"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "tez:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "tez",
		Usage:   "HTTP/1.1 server for static files and configured routes",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the server (default)",
				Action: serve,
			},
			{
				Name:   "check-config",
				Usage:  "Validate the configuration and print the effective values",
				Action: checkConfig,
			},
		},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"addr":        "server.addr",
	"workers":     "server.workers",
	"static-root": "static.root",
	"routes":      "routes.file",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"access-log":  "log.access",
	"admin-addr":  "admin.addr",
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"TEZ_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "listen address (default :8080)",
			EnvVars: []string{"TEZ_SERVER_ADDR"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "session worker count, 0 for one per CPU",
			EnvVars: []string{"TEZ_SERVER_WORKERS"},
		},
		&cli.StringFlag{
			Name:    "static-root",
			Usage:   "directory served under /static/",
			EnvVars: []string{"TEZ_STATIC_ROOT"},
		},
		&cli.StringFlag{
			Name:    "routes",
			Usage:   "route table file (.json, .yaml or .toml)",
			EnvVars: []string{"TEZ_ROUTES_FILE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "trace, debug, info, warn or error",
			EnvVars: []string{"TEZ_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "console or json",
			EnvVars: []string{"TEZ_LOG_FORMAT"},
		},
		&cli.StringFlag{
			Name:    "access-log",
			Usage:   "access log file, empty to disable",
			EnvVars: []string{"TEZ_LOG_ACCESS"},
		},
		&cli.StringFlag{
			Name:    "admin-addr",
			Usage:   "metrics and debug listener, empty to disable",
			EnvVars: []string{"TEZ_ADMIN_ADDR"},
		},
	}
}

// loadConfig layers defaults, the config file, TEZ_ variables and the
// flags that were set explicitly. source is the config file used, or "".
func loadConfig(c *cli.Context) (cfg config.Config, source string, err error) {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			overrides[key] = c.Value(flag)
		}
	}

	var opts []config.Option
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}

	m := config.NewManager(opts...)
	cfg, err = m.Load(overrides)
	return cfg, m.Source(), err
}

func setupLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	log.Logger = logger
	return logger
}

func serve(c *cli.Context) error {
	cfg, source, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Log)

	logger.Info().
		Str("version", Version).
		Str("config", source).
		Str("addr", cfg.Server.Addr).
		Str("static_root", cfg.Static.Root).
		Str("routes", cfg.Routes.File).
		Msg("Starting Tez")

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := a.Run(context.Background()); err != nil {
		return err
	}

	logger.Info().Msg("Server stopped")
	return nil
}

func checkConfig(c *cli.Context) error {
	cfg, source, err := loadConfig(c)
	if err != nil {
		return err
	}

	out, err := config.Dump(cfg)
	if err != nil {
		return err
	}
	if source != "" {
		fmt.Fprintf(c.App.Writer, "# source: %s\n", source)
	}
	_, err = c.App.Writer.Write(out)
	return err
}
