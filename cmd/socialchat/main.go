// Command socialchat runs the messaging backend.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"social-backend/internal/app"
	"social-backend/internal/config"
	"social-backend/internal/services"
	"social-backend/internal/utils"
)

// Flag variables.
var (
	port     string
	logLevel string
	tokenFor string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) config.Config {
	_ = utils.LoadEnv()
	cfg := config.Load()
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogPretty)
	return cfg
}

var rootCmd = &cobra.Command{
	Use:           "socialchat",
	Short:         "Direct messaging backend with consent-gated conversations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(loadConfig(cmd))
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables (postgres) or indexes (mongo) for STORE_DRIVER",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Migrate(context.Background(), loadConfig(cmd))
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a session token for a user id, signed with JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		token, err := services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL).Generate(tokenFor)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "v", "info",
		"Log level (trace, debug, info, warn, error). Overrides LOG_LEVEL.")

	serveCmd.Flags().StringVarP(&port, "port", "p", "3001",
		"Port to listen on. Overrides PORT.")

	tokenCmd.Flags().StringVarP(&tokenFor, "user", "u", "", "User id to put in the token.")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}
