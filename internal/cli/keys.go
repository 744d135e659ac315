package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tolelom/arcadechain/config"
	"github.com/tolelom/arcadechain/wallet"
)

func newGenKeyCommand() *cobra.Command {
	var out string
	var force bool
	cmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate a keystore file encrypted with $" + PasswordEnv,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s exists; pass --force to overwrite", out)
			}
			w, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := wallet.SaveKey(out, password(), w.PrivKey()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nkeystore: %s\n", w.Address(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "key.json", "keystore path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing keystore")
	return cmd
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or create configuration"}

	var out string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s exists", out)
			}
			if err := config.Save(config.DefaultConfig(), out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	initCmd.Flags().StringVar(&out, "out", "arcade.toml", "output path")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Validate and print the effective program identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ids, _ := cfg.Identities()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "chain_id:           %s\n", cfg.Genesis.ChainID)
			fmt.Fprintf(w, "cartridge_program:  %s\n", ids.Program)
			fmt.Fprintf(w, "asset_program:      %s\n", ids.AssetProgram)
			fmt.Fprintf(w, "system_program:     %s\n", ids.SystemProgram)
			fmt.Fprintf(w, "platform_recipient: %s\n", ids.PlatformRecipient)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
