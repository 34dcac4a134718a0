package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"cinehub/internal/microservices/http-api/service"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Watchlist commands",
}

var watchlistShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}

		result, err := httpClient.Watchlist()
		if err != nil {
			return fmt.Errorf("failed to get watchlist: %w", err)
		}
		if result.Total == 0 {
			fmt.Println("Your watchlist is empty.")
			return nil
		}
		for _, item := range result.Items {
			name := "(not in catalog)"
			if item.Title != nil {
				name = item.Title.Title
			}
			fmt.Printf("%-36s  %s  %s\n", item.TitleID, item.AddedAt.Format(timeLayout), name)
		}
		return nil
	},
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add [title-id]",
	Short: "Add a title to your watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}

		outcome, err := httpClient.AddToWatchlist(args[0])
		if err != nil {
			return fmt.Errorf("failed to add to watchlist: %w", err)
		}
		if outcome == service.AlreadyInWatchlist {
			fmt.Println("Already in your watchlist.")
			return nil
		}
		fmt.Println("✓ Added to watchlist")
		return nil
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove [title-id]",
	Short: "Remove a title from your watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}
		if err := httpClient.RemoveFromWatchlist(args[0]); err != nil {
			return fmt.Errorf("failed to remove from watchlist: %w", err)
		}
		fmt.Println("✓ Removed from watchlist")
		return nil
	},
}

func init() {
	watchlistCmd.AddCommand(watchlistShowCmd, watchlistAddCmd, watchlistRemoveCmd)
}
