package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "clearance/internal/jwt_token"
	"clearance/internal/platform/config"
	id "clearance/pkg/domain"
)

// tokenCmd mints a bearer token signed with the configured key, for local
// development and smoke tests.
func tokenCmd() *cobra.Command {
	var (
		userID string
		orgID  string
		role   string
		name   string
		email  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			user, err := id.ParseUserID(userID)
			if err != nil {
				return err
			}
			org, err := id.ParseOrganisationID(orgID)
			if err != nil {
				return err
			}
			svc := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
			token, err := svc.GenerateAccessToken(id.Actor{
				UserID:         user,
				OrganisationID: org,
				Role:           id.ParseRole(role),
				Name:           name,
				Email:          email,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	cmd.Flags().StringVar(&orgID, "org", "", "organisation id (uuid)")
	cmd.Flags().StringVar(&role, "role", string(id.RoleManager), "role claim")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
