package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/campuschat/internal/middleware"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the conversation API",
	Long: `Issue an HS256 token signed with JWT_SECRET for the configured user.
Export it as CHAT_TOKEN so the resource backend sends it.

Examples:
  export CHAT_TOKEN=$(campuschat token --user u1)`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to JWT_EXPIRATION)")
}

func runToken(cmd *cobra.Command, args []string) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if cfg.Client.UserID == "" {
		return errors.New("no user id: set CHAT_USER_ID or --user")
	}
	ttl := tokenTTL
	if ttl == 0 {
		ttl = cfg.JWTExpiration
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, cfg.Client.UserID, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
