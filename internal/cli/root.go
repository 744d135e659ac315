// Package cli implements the arcade command tree.
package cli

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tolelom/arcadechain/config"
	"github.com/tolelom/arcadechain/internal/logging"
)

// PasswordEnv names the variable holding the keystore password. Passwords
// are never taken from flags, which leak through the process list.
const PasswordEnv = "ARCADE_KEY_PASSWORD"

type rootOptions struct {
	configPath string
}

// NewRootCommand returns the `arcade` command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "arcade",
		Short:         "Arcade chain node and client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "arcade.toml", "config file (missing file means defaults)")

	root.AddCommand(newNodeCommand(opts))
	root.AddCommand(newGenKeyCommand())
	root.AddCommand(newConfigCommand(opts))
	root.AddCommand(newTxCommand(opts))
	return root
}

// load reads the config file, falling back to defaults when it does not
// exist, and applies environment overrides.
func (o *rootOptions) load() (*config.Config, error) {
	path := o.configPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		path = ""
	}
	return config.Load(path)
}

func setupLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}

func password() string {
	return os.Getenv(PasswordEnv)
}
