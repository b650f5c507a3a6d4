package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var cfg *Config

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "skyctl",
		Short: "CLI client for the skyarena game server",
		Long: `skyctl is a headless client for the skyarena control channel.

It performs the key handshake and speaks the framed protocol: account
signup/login, the aircraft shop, and entering the open world.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerAddr, "server", cfg.ServerAddr, "Control channel address (env: SKYARENA_ADDR)")
	rootCmd.PersistentFlags().StringVar(&cfg.WorldAddr, "world", cfg.WorldAddr, "World channel UDP address (env: SKYARENA_WORLD_ADDR)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Username, "username", "u", cfg.Username, "Account username (env: SKYARENA_USERNAME)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Password, "password", "p", cfg.Password, "Account password (env: SKYARENA_PASSWORD)")

	// Add subcommands
	rootCmd.AddCommand(newSignupCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newShopCmd())
	rootCmd.AddCommand(newBuyCmd())
	rootCmd.AddCommand(newFlyCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
