package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tolelom/arcadechain/internal/node"
	"github.com/tolelom/arcadechain/wallet"
)

func newNodeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "node",
		Short: "Run the sequencer node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			if password() == "" {
				logger.Warn().Msg(PasswordEnv + " not set; keystore uses an empty password")
			}
			priv, err := wallet.LoadKey(cfg.Keystore, password())
			if err != nil {
				return fmt.Errorf("load key %s: %w", cfg.Keystore, err)
			}

			n, err := node.New(cfg, priv, logger)
			if err != nil {
				return err
			}
			defer n.Close()
			if err := n.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			n.Run(ctx)
			logger.Info().Msg("shutdown complete")
			return nil
		},
	}
}
