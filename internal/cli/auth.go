package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/urfave/cli/v2"

	"github.com/Makepad-fr/tada/internal/session"
	"github.com/Makepad-fr/tada/internal/ui"
)

var credentialFlags = []cli.Flag{
	&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "account email"},
	&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "password (prompted when omitted)"},
}

func (r *runner) authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "log in, sign up and inspect the stored token",
		Subcommands: []*cli.Command{
			{Name: "login", Usage: "log in and store the token", Flags: credentialFlags, Action: r.authLogin},
			{Name: "signup", Usage: "create an account", Flags: credentialFlags, Action: r.authSignup},
			{Name: "logout", Usage: "forget the stored token", Action: r.authLogout},
			{Name: "status", Usage: "show where the token comes from and when it expires", Action: r.authStatus},
			{Name: "whoami", Usage: "decode the token locally", Action: r.authWhoAmI},
		},
	}
}

func (r *runner) credentials(c *cli.Context) (email, password string, err error) {
	email = c.String("email")
	if email == "" {
		if email, err = r.prompt("Email: "); err != nil {
			return "", "", err
		}
	}
	password = c.String("password")
	if password == "" {
		if password, err = r.readPassword("Password: "); err != nil {
			return "", "", err
		}
	}
	return strings.TrimSpace(email), password, nil
}

// readPassword disables echo when input is a terminal.
func (r *runner) readPassword(label string) (string, error) {
	if f, ok := r.deps.In.(*os.File); ok && term.IsTerminal(f.Fd()) {
		fmt.Fprint(r.deps.Out, label)
		b, err := term.ReadPassword(f.Fd())
		fmt.Fprintln(r.deps.Out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return r.prompt(label)
}

func (r *runner) authLogin(c *cli.Context) error {
	email, password, err := r.credentials(c)
	if err != nil {
		return err
	}
	u, err := r.env.Auth.Login(c.Context, email, password)
	if err != nil {
		return err
	}
	ui.OK("logged in as " + u.Email)
	return nil
}

func (r *runner) authSignup(c *cli.Context) error {
	email, password, err := r.credentials(c)
	if err != nil {
		return err
	}
	u, err := r.env.Auth.Signup(c.Context, email, password)
	if err != nil {
		return err
	}
	ui.OK("account created for " + u.Email)
	fmt.Fprintln(r.deps.Out, ui.Dim("Next: tada auth login --email "+u.Email))
	return nil
}

func (r *runner) authLogout(*cli.Context) error {
	ti, _ := r.env.Auth.Info()
	if ti != nil && ti.Source == "env" {
		ui.OK("token is provided by " + session.TokenEnv + " env var (nothing to delete)")
		return nil
	}
	if err := r.env.Auth.Logout(); err != nil {
		return err
	}
	ui.OK("logged out")
	return nil
}

func (r *runner) authStatus(*cli.Context) error {
	out := r.deps.Out
	ti, err := r.env.Auth.Info()
	if err != nil {
		return err
	}
	if ti == nil {
		fmt.Fprintln(out, ui.C(ui.Current().Muted, "not logged in"))
		fmt.Fprintln(out, "Run: tada auth login")
		return nil
	}
	fmt.Fprintf(out, "source: %s\n", ti.Source)
	exp := ti.ExpiresAt
	if exp == nil {
		exp = session.Expiry(ti.Token)
	}
	if exp != nil {
		state := ""
		if exp.Before(time.Now()) {
			state = " " + ui.C(ui.Current().Error, "(expired)")
		}
		fmt.Fprintf(out, "expires: %s%s\n", exp.UTC().Format(time.RFC3339), state)
	} else {
		fmt.Fprintln(out, "expires: (unknown)")
	}
	fmt.Fprintf(out, "api: %s\n", r.env.Client.BaseURL())
	fmt.Fprintln(out, "env override: "+session.TokenEnv)
	return nil
}

// authWhoAmI decodes the JWT locally (unverified); opaque tokens print
// basic info.
func (r *runner) authWhoAmI(*cli.Context) error {
	out := r.deps.Out
	ti, _ := r.env.Auth.Info()
	if ti == nil {
		return cli.Exit("not logged in. Run: tada auth login", 2)
	}
	claims, err := session.ParseClaims(ti.Token)
	if err != nil {
		fmt.Fprintln(out, "Opaque token (cannot introspect locally).")
		fmt.Fprintln(out, "source:", ti.Source)
		return nil
	}
	lines := []string{
		ui.C(ui.Current().Title, "Token claims"),
		fmt.Sprintf("user_id: %d", claims.UserID),
	}
	if claims.IssuedAt != nil {
		lines = append(lines, "issued:  "+claims.IssuedAt.UTC().Format(time.RFC3339))
	}
	if claims.ExpiresAt != nil {
		lines = append(lines, "expires: "+claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	lines = append(lines, "source:  "+ti.Source)
	ui.FPanel(out, lines)
	return nil
}
