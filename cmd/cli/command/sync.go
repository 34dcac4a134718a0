package command

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cinehub/cmd/cli/command/client"
	"cinehub/internal/titlesync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Catalog synchronization commands",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server's catalog sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := client.NewHTTPClient(apiURL).SyncStatus()
		if err != nil {
			return fmt.Errorf("failed to get sync status: %w", err)
		}
		printStatus(status)
		return nil
	},
}

var syncResyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Reload the catalog snapshot on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}
		status, err := httpClient.Resync()
		if err != nil {
			return fmt.Errorf("resync failed: %w", err)
		}
		fmt.Println("✓ Catalog reloaded")
		printStatus(status)
		return nil
	},
}

func printStatus(s *titlesync.Status) {
	state := color.GreenString("ready")
	switch {
	case s.Loading && !s.Ready:
		state = color.YellowString("loading")
	case !s.Ready:
		state = color.RedString("not ready")
	case s.Stale:
		state = color.YellowString("stale (cached snapshot)")
	}
	fmt.Printf("State:      %s\n", state)
	fmt.Printf("Titles:     %d\n", s.Titles)
	fmt.Printf("Subscribed: %t (connected: %t)\n", s.Subscribed, s.Connected)
	if !s.LoadedAt.IsZero() {
		fmt.Printf("Loaded at:  %s\n", s.LoadedAt.Format(timeLayout))
	}
	if !s.LastEventAt.IsZero() {
		fmt.Printf("Last event: %s\n", s.LastEventAt.Format(timeLayout))
	}
	if s.LastError != "" {
		color.Red("Last error: %s (retryable: %t)", s.LastError, s.Retryable)
	}
}

func init() {
	syncCmd.AddCommand(syncStatusCmd, syncResyncCmd)
}
