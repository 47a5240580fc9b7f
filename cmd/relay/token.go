package main

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/oz-collabo-04/Back/auth"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/spf13/cobra"
)

type tokenConfig struct {
	JWTSecret string `env:"JWT_SECRET,required=true"`
}

// tokenCmd mints a token for manual testing against a running relay.
func tokenCmd() *cobra.Command {
	var (
		userID int64
		name   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			var config tokenConfig
			if _, err := env.UnmarshalFromEnviron(&config); err != nil {
				return configError{fmt.Errorf("config error: %w", err)}
			}
			if userID <= 0 {
				return fmt.Errorf("--user-id must be positive")
			}
			token, err := auth.NewSigner(config.JWTSecret).GenerateToken(domain.UserID(userID), name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "User id carried by the token")
	cmd.Flags().StringVar(&name, "name", "", "Display name carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
