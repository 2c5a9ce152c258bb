package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/uc-remote-core/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the serve REST API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			if ttl <= 0 && a.cfg.Security.JWT.AccessTokenTTL > 0 {
				ttl = time.Duration(a.cfg.Security.JWT.AccessTokenTTL) * time.Minute
			}

			tok, claims, err := auth.IssueToken(subject, r, a.cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return fmt.Errorf("issuing token (set security.jwt.secret or UCREMOTE_JWT_SECRET): %w", err)
			}

			out := map[string]any{
				"token":      tok,
				"subject":    claims.Subject,
				"role":       claims.Role,
				"expires_at": claims.ExpiresAt.Time.UTC(),
			}
			return a.render(out, func() *table {
				return pairs(
					"subject", claims.Subject,
					"role", string(claims.Role),
					"expires_at", claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
					"token", tok,
				)
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "ucremote", "token subject")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "role: viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime (default from security.jwt.access_token_ttl)")
	return cmd
}
