package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/asquebay/leadbase-service/internal/authstore"
	"github.com/asquebay/leadbase-service/internal/lib/jwtauth"
	"github.com/asquebay/leadbase-service/internal/model"
)

func loginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, _ := cmd.Flags().GetString("token")
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			if err := a.auth().Save(authstore.State{Token: token}); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "token saved")
			return nil
		},
	}
	cmd.Flags().String("token", "", "bearer token")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token, cached dashboards and the row selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth().Clear(); err != nil {
				return err
			}
			for _, key := range []string{dashboardScope, selectionScope} {
				if err := a.sessionStore().Delete(key); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.out, "logged out")
			return nil
		},
	}
}

// devTokenCmd выпускает токен локально, если известен секрет сервера; нужен для разработки
func devTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Mint and store a token signed with a known server secret (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			issuer, _ := cmd.Flags().GetString("issuer")
			sub, _ := cmd.Flags().GetString("sub")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			userID := uuid.New()
			if sub != "" {
				id, err := uuid.Parse(sub)
				if err != nil {
					return fmt.Errorf("invalid --sub: %w", err)
				}
				userID = id
			}

			token, err := jwtauth.Issue(secret, issuer, jwtauth.Principal{UserID: userID, Role: model.Role(role)}, ttl, time.Now())
			if err != nil {
				return err
			}
			if err := a.auth().Save(authstore.State{Token: token, Role: role}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "token for %s (%s) saved\n", userID, role)
			return nil
		},
	}
	cmd.Flags().String("secret", "", "server JWT secret")
	cmd.Flags().String("issuer", "leadbase", "token issuer")
	cmd.Flags().String("sub", "", "user id (random when empty)")
	cmd.Flags().String("role", string(model.RoleCustomer), "superadmin, admin or customer")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	return cmd
}
