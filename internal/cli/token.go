package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/pkg/jwtutil"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token [owner-id]",
	Short: "Issue a bearer token for an owner",
	Long: `Signs a token with auth.jwt_secret. Requests that send it as
"Authorization: Bearer <token>" store and list documents under the owner.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{offlineAnnotation: "true"},
	RunE:        runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is empty, tokens are not verified")
	}
	if tokenTTL <= 0 {
		return errors.New("--ttl must be positive")
	}

	token, err := jwtutil.GenerateToken(cfg.Auth.JWTSecret, tokenTTL, args[0])
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}
