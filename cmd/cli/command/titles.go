package command

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cinehub/cmd/cli/command/client"
)

var titlesCmd = &cobra.Command{
	Use:   "titles",
	Short: "Browse the catalog",
}

var titlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List completed titles",
	RunE: func(cmd *cobra.Command, args []string) error {
		var q client.TitleQuery
		q.Type, _ = cmd.Flags().GetString("type")
		q.Sort, _ = cmd.Flags().GetString("sort")
		q.Search, _ = cmd.Flags().GetString("search")
		q.Limit, _ = cmd.Flags().GetInt("limit")

		result, err := client.NewHTTPClient(apiURL).Titles(q)
		if err != nil {
			return fmt.Errorf("failed to list titles: %w", err)
		}

		if result.Stale {
			color.Yellow("! catalog is served from a cached snapshot")
		}
		if result.Total == 0 {
			fmt.Println("No titles found.")
			return nil
		}
		for _, t := range result.Items {
			printTitleRow(t)
		}
		fmt.Printf("\n%d titles\n", result.Total)
		return nil
	},
}

var titlesGetCmd = &cobra.Command{
	Use:   "get [title-id]",
	Short: "Show one title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := client.NewHTTPClient(apiURL).Title(args[0])
		if err != nil {
			return fmt.Errorf("failed to get title: %w", err)
		}
		printTitle(*t)
		return nil
	},
}

var titlesFollowCmd = &cobra.Command{
	Use:   "follow",
	Short: "Print catalog changes as they happen (Ctrl+C to stop)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return client.FollowTitles(apiURL)
	},
}

func init() {
	titlesListCmd.Flags().String("type", "", "movie, series or short")
	titlesListCmd.Flags().String("sort", "recent", "recent, trending or top_rated")
	titlesListCmd.Flags().StringP("search", "q", "", "search name, logline, genres and tags")
	titlesListCmd.Flags().Int("limit", 20, "maximum number of titles")

	titlesCmd.AddCommand(titlesListCmd, titlesGetCmd, titlesFollowCmd)
}
