package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mahyarmirrashed/ctxignore/internal/config"
	"github.com/mahyarmirrashed/ctxignore/internal/engine"
	log "github.com/sirupsen/logrus"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
)

// Set at build time: go build -ldflags "-X main.version=1.2.3"
var version = "dev"

func init() {
	// Configure logger to include timestamp and caller (file:line)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		},
	})
	log.SetReportCaller(true)
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	var configPath string
	fromConfig := func(key string) cli.ValueSource {
		return yaml.YAML(key, altsrc.NewStringPtrSourcer(&configPath))
	}

	return &cli.Command{
		Name:    "ctxignore",
		Usage:   "Decide which workspace files may be sent as AI context",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("CTXIGNORE_CONFIG"),
				Value:       config.DefaultConfigFilename,
				Destination: &configPath,
			},
			&cli.StringSliceFlag{
				Name:    "root",
				Usage:   "workspace root (repeatable)",
				Sources: cli.EnvVars("CTXIGNORE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "logging level: debug, info, warn, error",
				Sources: cli.NewValueSourceChain(cli.EnvVar("CTXIGNORE_LOG_LEVEL"), fromConfig("log_level")),
			},
			&cli.StringSliceFlag{
				Name:    "exclude",
				Usage:   "glob patterns that are always excluded (repeat or comma-separated)",
				Sources: cli.EnvVars("CTXIGNORE_EXCLUDE"),
			},
			&cli.BoolFlag{
				Name:    "case-insensitive",
				Usage:   "compare paths case-insensitively",
				Sources: cli.NewValueSourceChain(cli.EnvVar("CTXIGNORE_CASE_INSENSITIVE"), fromConfig("case_insensitive")),
			},
			&cli.BoolFlag{
				Name:    "notifications",
				Usage:   "send desktop notifications for excluded files",
				Sources: cli.NewValueSourceChain(cli.EnvVar("CTXIGNORE_NOTIFICATIONS"), fromConfig("notifications")),
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			normalizeCommand(),
			globCommand(),
			checkCommand(),
			findCommand(),
			watchCommand(),
		},
	}
}

// loadConfig reads the config file if it exists and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	var cfg *config.Config
	configPath := cmd.String("config")

	// Only load config if the file exists
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg = config.Default()
	}

	// Override config with flags if set
	if cmd.IsSet("root") {
		cfg.Roots = splitList(cmd.StringSlice("root"))
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("exclude") {
		cfg.Exclude = splitList(cmd.StringSlice("exclude"))
	}
	if cmd.IsSet("case-insensitive") {
		cfg.CaseInsensitive = cmd.Bool("case-insensitive")
	}
	if cmd.IsSet("notifications") {
		cfg.Notifications = cmd.Bool("notifications")
	}

	setLogLevel(cfg.LogLevel)
	return cfg, nil
}

// newEngine loads the config and builds an engine from it.
func newEngine(cmd *cli.Command, opts ...engine.Option) (*config.Config, *engine.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, eng, nil
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

func splitList(values []string) []string {
	var merged []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				merged = append(merged, p)
			}
		}
	}
	return merged
}
