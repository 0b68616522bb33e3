package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mahyarmirrashed/ctxignore/internal/config"
	"github.com/mahyarmirrashed/ctxignore/internal/daemon"
	"github.com/mahyarmirrashed/ctxignore/internal/engine"
	"github.com/mahyarmirrashed/ctxignore/internal/loader"
	"github.com/mahyarmirrashed/ctxignore/internal/utils"
	"github.com/mahyarmirrashed/ctxignore/internal/workspace"
	godaemon "github.com/sevlyar/go-daemon"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write a default config file to the --config path",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing config file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("config")
			if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
				return cli.Exit(fmt.Sprintf("%s already exists, use --force to overwrite", path), 1)
			}

			cfg := config.Default()
			if cmd.IsSet("root") {
				cfg.Roots = splitList(cmd.StringSlice("root"))
			}
			if cmd.IsSet("exclude") {
				cfg.Exclude = splitList(cmd.StringSlice("exclude"))
			}
			if err := config.SaveConfig(path, cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(output(cmd), "Wrote %s\n", path)
			return nil
		},
	}
}

func normalizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Usage:     "print the patterns ignore-file lines turn into (reads stdin without arguments)",
		ArgsUsage: "[line...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var content string
			if cmd.Args().Present() {
				content = strings.Join(cmd.Args().Slice(), "\n")
			} else {
				data, err := io.ReadAll(bufio.NewReader(cmd.Root().Reader))
				if err != nil {
					return err
				}
				content = string(data)
			}

			out := output(cmd)
			for _, p := range loader.Parse([]byte(content)).Enabled() {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
}

func globCommand() *cli.Command {
	return &cli.Command{
		Name:      "glob",
		Usage:     "print the exclude glob of each workspace root",
		ArgsUsage: "[root...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "workspace",
				Usage: "print one glob merging every root, editor settings and the built-in excludes",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, eng, err := newEngine(cmd, engine.WithWatcher(nil))
			if err != nil {
				return err
			}
			defer eng.Close()

			out := output(cmd)
			if cmd.Bool("workspace") {
				fmt.Fprintln(out, eng.WorkspaceExcludeGlob(ctx))
				return nil
			}
			roots := eng.Roots()
			if cmd.Args().Present() {
				roots = nil
				for _, arg := range cmd.Args().Slice() {
					abs, err := filepath.Abs(utils.ExpandTilde(arg))
					if err != nil {
						return err
					}
					roots = append(roots, workspace.Root{Path: abs})
				}
			}
			for _, root := range roots {
				fmt.Fprintf(out, "%s\t%s\n", root.Path, eng.ExcludeGlob(ctx, root))
			}
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "report whether each path may be used as context",
		ArgsUsage: "<path...>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "table", Usage: "render results as a table"},
			&cli.BoolFlag{Name: "explain", Usage: "show the pattern that excluded each path"},
			&cli.BoolFlag{Name: "strict", Usage: "exit with status 1 if any path is excluded"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if !cmd.Args().Present() {
				return cli.Exit("check needs at least one path", 2)
			}
			_, eng, err := newEngine(cmd, engine.WithWatcher(nil))
			if err != nil {
				return err
			}
			defer eng.Close()

			out := output(cmd)
			explain := cmd.Bool("explain")

			var tw table.Writer
			if cmd.Bool("table") {
				tw = table.NewWriter()
				tw.SetOutputMirror(out)
				header := table.Row{"Path", "Result"}
				if explain {
					header = append(header, "Pattern", "Root")
				}
				tw.AppendHeader(header)
			}

			excluded := 0
			for _, path := range cmd.Args().Slice() {
				d := eng.Explain(ctx, path)
				if d.Result.Ignored() {
					excluded++
				}
				switch {
				case tw != nil && explain:
					tw.AppendRow(table.Row{path, d.Result, d.Pattern, rootLabel(d.Root)})
				case tw != nil:
					tw.AppendRow(table.Row{path, d.Result})
				case explain && d.Pattern != "":
					fmt.Fprintf(out, "%s\t%s\t%s\n", path, d.Result, d.Pattern)
				default:
					fmt.Fprintf(out, "%s\t%s\n", path, d.Result)
				}
			}
			if tw != nil {
				tw.Render()
			}

			if excluded > 0 && cmd.Bool("strict") {
				return cli.Exit(fmt.Sprintf("%d path(s) excluded", excluded), 1)
			}
			return nil
		},
	}
}

func rootLabel(r workspace.Root) string {
	if r.IsZero() {
		return "-"
	}
	return r.Path
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:  "find",
		Usage: "list workspace files that may be used as context",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "include", Usage: "only list files matching this glob"},
			&cli.BoolFlag{Name: "use-ignore-files", Usage: "also honor the root .gitignore"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("include") {
				cfg.Include = cmd.String("include")
			}
			if cmd.IsSet("use-ignore-files") {
				cfg.UseIgnoreFiles = cmd.Bool("use-ignore-files")
			}

			eng, err := engine.New(cfg, engine.WithWatcher(nil))
			if err != nil {
				return err
			}
			defer eng.Close()

			files, err := eng.FindFiles(ctx)
			if err != nil {
				return err
			}
			out := output(cmd)
			for _, f := range files {
				fmt.Fprintln(out, f)
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "report newly created files that are excluded from context",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "daemonize",
				Usage:   "run as daemon",
				Sources: cli.EnvVars("CTXIGNORE_DAEMONIZE"),
			},
			&cli.DurationFlag{
				Name:    "delay",
				Usage:   "processing delay on new files",
				Sources: cli.EnvVars("CTXIGNORE_DELAY"),
			},
			&cli.DurationFlag{
				Name:    "debounce",
				Usage:   "coalescing window for ignore-file changes",
				Sources: cli.EnvVars("CTXIGNORE_DEBOUNCE"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("daemonize") {
				cfg.Daemonize = cmd.Bool("daemonize")
			}
			if cmd.IsSet("delay") {
				cfg.Delay = cmd.Duration("delay")
			}
			if cmd.IsSet("debounce") {
				cfg.Debounce = cmd.Duration("debounce")
			}

			// Only daemonize if config says so
			if cfg.Daemonize {
				daemonCtx := &godaemon.Context{
					PidFileName: "ctxignore.pid",
					PidFilePerm: 0644,
					LogFileName: "ctxignore.log",
					LogFilePerm: 0640,
					WorkDir:     "./",
					Umask:       027,
					Args:        []string{"[ctxignore-daemon]"},
				}

				d, err := daemonCtx.Reborn()
				if err != nil {
					return fmt.Errorf("unable to run: %w", err)
				}
				if d != nil {
					return nil // Parent process exits
				}
				defer daemonCtx.Release()
				log.Info("Daemon started")
			} else {
				log.Info("Running in foreground (not daemonized)")
			}

			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			return daemon.RunDaemon(ctx, cfg, eng)
		},
	}
}
