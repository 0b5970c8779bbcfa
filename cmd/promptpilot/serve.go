package main

import (
	"github.com/spf13/cobra"
)

func newServeCmd(gf *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the prompt collection over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := openApp(ctx, gf)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			if addr == "" {
				addr = app.Config.Addr
			}
			return app.Server().ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (defaults to PROMPTPILOT_ADDR)")
	return cmd
}
