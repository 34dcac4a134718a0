package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator commands",
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show user, title and rating counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}
		stats, err := httpClient.Stats()
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		fmt.Printf("Users:   %d\n", stats.Users)
		fmt.Printf("Titles:  %d\n", stats.Titles)
		fmt.Printf("Ratings: %d\n", stats.Ratings)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminStatsCmd)
}
