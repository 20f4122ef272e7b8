package cli

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wewew312/todomemes/internal/auth"
	"github.com/wewew312/todomemes/internal/ui"
)

func (a *app) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Token authentication",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return &usageError{err: errors.New("auth: missing subcommand"),
				hint: "usage: tada auth <login|logout|status|whoami>"}
		},
	}
	cmd.AddCommand(a.loginCmd(), a.logoutCmd(), a.statusCmd(), a.whoamiCmd())
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a bearer token (read from stdin unless --token is given)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("token") {
				fmt.Fprint(a.out, "Paste your token: ")
				line, err := bufio.NewReader(a.in).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = line
			}
			if strings.TrimSpace(token) == "" {
				return usagef("login: empty token")
			}
			if err := a.creds.Set(token, nil); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			ui.OK(a.out, "logged in")
			if a.creds.Overridden() {
				ui.Hint(a.out, "note: the configured token still takes precedence")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token to save")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the saved token",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.creds.Delete(); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			ui.OK(a.out, "logged out")
			if a.creds.Overridden() {
				ui.Hint(a.out, "token is also provided by config or TADA_TOKEN (nothing to delete there)")
			}
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the token comes from",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ti, err := a.creds.Get()
			if errors.Is(err, auth.ErrNotLoggedIn) {
				fmt.Fprintln(a.out, ui.C(ui.Current().Muted, "not logged in"))
				fmt.Fprintln(a.out, "Run: tada auth login")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "source: %s\n", ti.Source)
			if ti.ExpiresAt != nil {
				fmt.Fprintf(a.out, "expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintln(a.out, "expires: (unknown)")
			}
			fmt.Fprintf(a.out, "file: %s\n", a.creds.Path())
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Decode the token's claims locally (unverified)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ti, err := a.creds.Get()
			if errors.Is(err, auth.ErrNotLoggedIn) {
				return &usageError{err: err, hint: "Run: tada auth login"}
			}
			if err != nil {
				return err
			}
			claims, err := auth.Claims(ti.Token)
			if err != nil {
				fmt.Fprintln(a.out, "Opaque token (cannot introspect locally).")
				fmt.Fprintln(a.out, "source:", ti.Source)
				return nil
			}
			keys := make([]string, 0, len(claims))
			for k := range claims {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(a.out, "%s: %v\n", k, claims[k])
			}
			return nil
		},
	}
}
