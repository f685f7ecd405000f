package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telekom/props-override/pkg/api"
)

func NewServeCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP decision service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			log := rt.Logger()
			defer func() { _ = log.Sync() }()

			cfg := rt.cfg.Server
			if listen != "" {
				cfg.ListenAddress = listen
			}

			aud, err := rt.Auditor()
			if err != nil {
				return fmt.Errorf("failed to set up audit: %w", err)
			}
			defer func() {
				if err := aud.Close(); err != nil {
					log.Sugar().Warnw("Failed to close audit manager", "error", err)
				}
			}()

			if rt.cfg.Overrides.CertifiedIncomplete() {
				log.Warn("Certified fingerprint configured without device or model; empty values will be written")
			}

			server := api.NewServer(log, cfg, rt.Registry(), asAuditor(aud), rt.debug)
			defer server.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Listen(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address override")
	return cmd
}
