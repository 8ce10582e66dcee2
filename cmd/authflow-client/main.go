// Command authflow-client exercises the auth API the way the browser app
// does: bootstrap, login, authenticated calls with silent refresh, logout.
// The refresh cookie lives in an in-process jar, so each invocation is a
// fresh "browser session"; the demo command walks the whole lifecycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/target/authflow/config"
	"github.com/target/authflow/internal/bootstrap"
	"github.com/target/authflow/internal/client"
	domainauth "github.com/target/authflow/internal/domain/auth"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
}

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cmdCtx := &commandContext{Ctx: context.Background(), Logger: logger}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"demo": {
			name:        "demo",
			description: "Walk the full session lifecycle: bootstrap, login, profile, refresh, logout",
			run:         runDemo,
		},
		"login": {
			name:        "login",
			description: "Log in and print the authenticated profile",
			run:         runLogin,
		},
		"signup": {
			name:        "signup",
			description: "Register a new account and print the authenticated profile",
			run:         runSignup,
		},
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: authflow-client <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
	for _, cmd := range commands() {
		fmt.Fprintf(w, "  %s\t%s\n", cmd.name, cmd.description)
	}
	_ = w.Flush()
}

// clientFlags holds the flags shared by every command.
type clientFlags struct {
	baseURL    string
	loginField string
	statePath  string
	loginKey   string
	password   string
	name       string
}

func (f *clientFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.baseURL, "base-url", "http://localhost:5000", "server base URL")
	fs.StringVar(&f.loginField, "login-field", "email", "login key field (email or username)")
	fs.StringVar(&f.statePath, "state", ".authflow-state.json", "persisted session state file, empty to disable")
	fs.StringVar(&f.loginKey, "login", "user@example.com", "login key (email or username)")
	fs.StringVar(&f.password, "password", "password123", "password")
	fs.StringVar(&f.name, "name", "", "display name (signup only)")
}

func (f *clientFlags) build(logger *slog.Logger) (*client.Client, error) {
	var field config.LoginField
	if err := field.UnmarshalText([]byte(f.loginField)); err != nil {
		return nil, err
	}

	opts := client.Options{
		BaseURL:    f.baseURL,
		LoginField: field,
		Logger:     logger,
	}
	if f.statePath != "" {
		opts.StateFile = client.NewStateFile(f.statePath)
	}
	return client.New(opts)
}

func parseFlags(name string, args []string) (*clientFlags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	flags := &clientFlags{}
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

func runLogin(ctx *commandContext, args []string) error {
	flags, err := parseFlags("login", args)
	if err != nil {
		return err
	}
	c, err := flags.build(ctx.Logger)
	if err != nil {
		return err
	}

	user, err := c.Login(ctx.Ctx, flags.loginKey, flags.password)
	if err != nil {
		return err
	}
	printProfile(os.Stdout, user)
	return nil
}

func runSignup(ctx *commandContext, args []string) error {
	flags, err := parseFlags("signup", args)
	if err != nil {
		return err
	}
	c, err := flags.build(ctx.Logger)
	if err != nil {
		return err
	}

	user, err := c.Signup(ctx.Ctx, flags.loginKey, flags.password, flags.name)
	if err != nil {
		return err
	}
	printProfile(os.Stdout, user)
	return nil
}

// runDemo walks the whole session lifecycle against a running server,
// including a burst of concurrent authenticated calls to show the shared
// refresh in action.
func runDemo(ctx *commandContext, args []string) error {
	flags, err := parseFlags("demo", args)
	if err != nil {
		return err
	}
	c, err := flags.build(ctx.Logger)
	if err != nil {
		return err
	}

	authed, err := c.Bootstrap(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	fmt.Printf("bootstrap: authenticated=%v\n", authed)

	if !authed {
		user, loginErr := c.Login(ctx.Ctx, flags.loginKey, flags.password)
		if loginErr != nil {
			return fmt.Errorf("login: %w", loginErr)
		}
		fmt.Println("login: ok")
		printProfile(os.Stdout, user)
	}

	user, err := c.Profile(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	printProfile(os.Stdout, user)

	if err = c.Refresh(ctx.Ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	fmt.Println("refresh: ok")

	// Concurrent authenticated calls share the session (and, when the
	// token has gone stale, a single refresh).
	g, gctx := errgroup.WithContext(ctx.Ctx)
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, perr := c.Profile(gctx)
			return perr
		})
	}
	if err = g.Wait(); err != nil {
		return fmt.Errorf("concurrent profile calls: %w", err)
	}
	fmt.Println("concurrent profile calls: ok")

	if err = c.Logout(ctx.Ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Printf("logout: ok (state=%s)\n", c.Session().Snapshot().Status())
	return nil
}

func printProfile(w io.Writer, user domainauth.Profile) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", user.ID)
	if user.Email != "" {
		fmt.Fprintf(tw, "email\t%s\n", user.Email)
	}
	if user.Username != "" {
		fmt.Fprintf(tw, "username\t%s\n", user.Username)
	}
	fmt.Fprintf(tw, "name\t%s\n", user.Name)
	_ = tw.Flush()
}
