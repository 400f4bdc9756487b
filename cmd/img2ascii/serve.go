package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wbrown/img2ascii/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			opts, err := a.cfg.Options()
			if err != nil {
				return err
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			rasterOpts, err := a.rasterizerOptions()
			if err != nil {
				return err
			}

			serverOpts := []server.Option{
				server.WithLogger(a.logger.Named("server")),
				server.WithDefaults(opts),
				server.WithRasterizerOptions(rasterOpts...),
			}
			if a.cfg.Server.MaxUploadSize > 0 {
				serverOpts = append(serverOpts, server.WithMaxUploadSize(a.cfg.Server.MaxUploadSize))
			}
			srv := server.New(engine, serverOpts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}
