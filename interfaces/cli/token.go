package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mindo/infrastructure/config"
	"mindo/infrastructure/di"
	"mindo/pkg/auth"
)

var (
	email    string
	tokenTTL time.Duration
)

// tokenCmd mints a bearer token for local testing against the API
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed API token for a learner",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		secret := cfg.JWTSecret
		if secret == "" {
			if !cfg.IsDevelopment() {
				return fmt.Errorf("JWT_SECRET must be set to mint tokens")
			}
			secret = di.DevelopmentSecret
		}

		gen, err := auth.NewJWTGenerator(auth.JWTConfig{SecretKey: secret, Issuer: cfg.JWTIssuer}, tokenTTL)
		if err != nil {
			return err
		}
		token, err := gen.GenerateToken(userID, email)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&email, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
