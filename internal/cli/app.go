// Package cli is the tada command tree.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Makepad-fr/tada/internal/apiclient"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/ui"
)

// Deps are the process-level inputs of the command tree.
type Deps struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Getenv func(string) string

	// LogWriter overrides the configured log file, mostly for tests.
	LogWriter io.Writer

	// RunTUI starts the interactive interface; it is the default command.
	RunTUI func(ctx context.Context, env *Env) error
}

func (d *Deps) defaults() {
	if d.In == nil {
		d.In = os.Stdin
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Err == nil {
		d.Err = os.Stderr
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
}

// runner carries state shared by the actions of one invocation.
type runner struct {
	deps Deps
	in   *bufio.Reader
	env  *Env
}

func usageError(format string, a ...any) error {
	return cli.Exit(fmt.Sprintf(format, a...), 2)
}

func onUsageError(_ *cli.Context, err error, _ bool) error {
	return cli.Exit(err.Error(), 2)
}

func BuildApp(deps Deps) *cli.App {
	deps.defaults()
	r := &runner{deps: deps, in: bufio.NewReader(deps.In)}

	app := &cli.App{
		Name:      "tada",
		Usage:     "a terminal client for your todo list",
		UsageText: "tada [global options] <command> [args]",
		Reader:    deps.In,
		Writer:    deps.Out,
		ErrWriter: deps.Err,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "extra TOML config file"},
			&cli.StringFlag{Name: "api-url", Usage: "API base URL (env TADA_API_URL)"},
			&cli.StringFlag{Name: "home", Usage: "state directory (env TADA_HOME, default ~/.tada)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
			&cli.StringFlag{Name: "log-file", Usage: "log destination, - for stderr"},
			&cli.StringFlag{Name: "theme", Usage: "classic, neon or mono"},
			&cli.StringFlag{Name: "timeout", Usage: "per-request timeout, e.g. 10s"},
			&cli.BoolFlag{Name: "color", Usage: "force colored output"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored output"},
		},
		Before: r.before,
		After: func(*cli.Context) error {
			return r.env.Close()
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				return usageError("unknown command: %s", c.Args().First())
			}
			return r.runTUI(c)
		},
		OnUsageError:   onUsageError,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			r.authCommand(),
			r.listCommand(),
			r.addCommand(),
			r.showCommand(),
			r.editCommand(),
			r.statusCommand(),
			r.doneCommand(),
			r.removeCommand(),
			{
				Name:   "tui",
				Usage:  "open the interactive interface (default)",
				Action: r.runTUI,
			},
			r.configCommand(),
		},
	}
	setUsageErrors(app.Commands)
	return app
}

func setUsageErrors(cmds []*cli.Command) {
	for _, c := range cmds {
		c.OnUsageError = onUsageError
		setUsageErrors(c.Subcommands)
	}
}

func (r *runner) before(c *cli.Context) error {
	flags := map[string]string{
		"api_base_url":    c.String("api-url"),
		"home_dir":        c.String("home"),
		"log_level":       c.String("log-level"),
		"log_format":      c.String("log-format"),
		"log_file":        c.String("log-file"),
		"theme":           c.String("theme"),
		"request_timeout": c.String("timeout"),
	}
	cfg, err := config.Load(config.LoadOptions{
		ExplicitFile: c.String("config"),
		Flags:        flags,
		Getenv:       r.deps.Getenv,
	})
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	ui.SetTheme(cfg.Theme)
	if c.Bool("color") || c.Bool("no-color") {
		ui.SetColorForcing(c.Bool("color"), c.Bool("no-color"))
	}
	env, err := NewEnv(cfg, r.deps.Getenv, r.deps.LogWriter)
	if err != nil {
		return err
	}
	env.Session.SetNavigator(&terminalNav{location: "/todos"})
	r.env = env
	return nil
}

func (r *runner) runTUI(c *cli.Context) error {
	if r.deps.RunTUI == nil {
		return cli.ShowAppHelp(c)
	}
	return r.deps.RunTUI(c.Context, r.env)
}

// Run executes args (without the program name) and returns the exit code:
// 0 ok, 1 runtime failure, 2 usage or validation error.
func Run(ctx context.Context, args []string, deps Deps) int {
	deps.defaults()
	ui.Stdout, ui.Stderr = deps.Out, deps.Err
	app := BuildApp(deps)
	err := app.RunContext(ctx, append([]string{"tada"}, args...))
	return report(err)
}

func report(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		if msg := strings.TrimSpace(ec.Error()); msg != "" {
			ui.Fail(msg)
		}
		return ec.ExitCode()
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		ui.Fail(ve.Error())
		return 2
	}
	ui.Fail(apiclient.Message(err))
	if apiclient.StatusCode(err) == http.StatusNotFound {
		warn("it may have been removed elsewhere. Run: tada ls")
	}
	return 1
}

func warn(msg string) { ui.Warn(msg) }

// requireAuth mirrors the login gate of the interactive client.
func (r *runner) requireAuth() error {
	if !r.env.Session.IsAuthenticated() {
		return cli.Exit("not logged in. Run: tada auth login", 2)
	}
	return nil
}

func parseID(c *cli.Context) (uint, error) {
	if c.NArg() < 1 {
		return 0, usageError("usage: tada %s <id>", c.Command.Name)
	}
	s := strings.TrimPrefix(c.Args().First(), "#")
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, usageError("%s: not a todo id: %s", c.Command.Name, c.Args().First())
	}
	return uint(n), nil
}

// prompt prints label and reads one line.
func (r *runner) prompt(label string) (string, error) {
	fmt.Fprint(r.deps.Out, label)
	line, err := r.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *runner) confirm(label string) (bool, error) {
	ans, err := r.prompt(label + " [y/N] ")
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(ans)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
