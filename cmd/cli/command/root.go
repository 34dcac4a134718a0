package command

// root.go defines the root command and the global flags.

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cinehub/cmd/cli/authentication"
	"cinehub/cmd/cli/command/client"
)

var (
	apiURL string // API server URL
	token  string // session token override (jwt)
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cinehub",
	Short: "cinehub - catalog command line interface",
	Long: `cinehub talks to the cinehub API server. Use it to:
- Browse, search and follow the title catalog
- Rate titles
- Keep a watchlist and curated lists
- Inspect and trigger catalog synchronization

Use "cinehub [command] --help" to see all available commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	defaultAPI := os.Getenv("CINEHUB_API")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}

	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPI, "API server URL (env CINEHUB_API)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "session token, overrides the stored one")

	rootCmd.AddCommand(authCmd, titlesCmd, ratingCmd, watchlistCmd, listsCmd, syncCmd, adminCmd)
}

// GetAuthenticatedClient returns a client carrying the --token flag or the
// token saved by `auth login`.
func GetAuthenticatedClient() (*client.HTTPClient, error) {
	c := client.NewHTTPClient(apiURL)
	if token != "" {
		c.SetToken(token)
		return c, nil
	}

	creds, err := authentication.GetTokens()
	if err != nil {
		return nil, err
	}
	if creds.Expired(time.Now()) {
		return nil, fmt.Errorf("session expired: log in again")
	}
	c.SetToken(creds.AccessToken)
	return c, nil
}
