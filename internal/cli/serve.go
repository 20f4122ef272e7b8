package cli

import (
	"github.com/spf13/cobra"

	"github.com/wewew312/todomemes/internal/server"
	"github.com/wewew312/todomemes/internal/ui"
)

func (a *app) serveCmd() *cobra.Command {
	var addr, token string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend in memory",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Server.Addr
			}
			if !cmd.Flags().Changed("token") {
				token = a.cfg.Server.Token
			}
			srv := server.New(
				server.WithToken(token),
				server.WithLogger(a.log),
			)
			ui.Hint(a.out, "serving on "+addr+" (ctrl+c to stop)")
			return srv.Run(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&token, "token", "", "require this bearer token")
	return cmd
}
