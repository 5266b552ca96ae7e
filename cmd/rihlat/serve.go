package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/barekit/rihlat/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat and voice HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.HTTPAddr
			}
			if !c.cfg.Debug {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return c.withApp(ctx, func(ctx context.Context, a *app.App) error {
				return a.Server().Run(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from HTTP_ADDR)")
	return cmd
}
