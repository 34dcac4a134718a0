package command

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"cinehub/cmd/cli/authentication"
	"cinehub/internal/session"
)

// auth.go: sessions are minted by the identity provider; the CLI only stores
// the token it was given.

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Session commands",
	Long:  `Store, inspect and remove the session token used for authenticated commands.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save the session token given with --token",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := token
		if raw == "" {
			return fmt.Errorf("--token is required")
		}

		creds, err := credentialsFromToken(raw)
		if err != nil {
			return err
		}
		if err := authentication.StoreTokens(creds); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}

		fmt.Println("✓ Logged in")
		fmt.Printf("UserID: %s\n", creds.UserID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authentication.DeleteTokens(); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
		fmt.Println("✓ Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := authentication.GetTokens()
		if err != nil {
			return err
		}
		fmt.Printf("UserID: %s\n", creds.UserID)
		if creds.Email != "" {
			fmt.Printf("Email:  %s\n", creds.Email)
		}
		if creds.ExpiresAt > 0 {
			fmt.Printf("Expires: %s\n", formatUnix(creds.ExpiresAt))
		}
		return nil
	},
}

// credentialsFromToken reads the claims without verifying the signature;
// the server verifies on every request.
func credentialsFromToken(raw string) (*authentication.StoredCredentials, error) {
	var claims session.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("not a valid token: %w", err)
	}
	if claims.UserID() == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	creds := &authentication.StoredCredentials{
		AccessToken: raw,
		UserID:      claims.UserID(),
		Email:       claims.Email,
	}
	if claims.ExpiresAt != nil {
		creds.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return creds, nil
}

func init() {
	authCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}
