package main

import (
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	"attestor/internal/platform/config"
	"attestor/internal/platform/logger"
)

var Version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "attestor: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "attestor",
		Usage: "Verify identity documents against submitted data and issue signed credentials",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "key-file",
				Usage:   "path to the Ed25519 signing key (JWK)",
				EnvVars: []string{"ATTESTOR_KEY_FILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"ATTESTOR_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json",
				EnvVars: []string{"ATTESTOR_LOG_FORMAT"},
			},
		},
		Commands: []*cli.Command{
			serve,
			keygen,
			issue,
			verify,
			decode,
		},
		ErrWriter: os.Stderr,
		Version:   Version,
	}
}

// loadConfig overlays global flags on the environment configuration.
func loadConfig(cmd *cli.Context) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if cmd.IsSet("key-file") {
		cfg.Issuer.KeyFile = cmd.String("key-file")
	}
	if cmd.IsSet("log-level") {
		cfg.Logging.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Logging.Format = cmd.String("log-format")
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}
