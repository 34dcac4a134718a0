package command

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cinehub/internal/models"
)

var ratingCmd = &cobra.Command{
	Use:   "rating",
	Short: "Rating commands",
	Long:  `Rate titles and review your ratings.`,
}

var rateCmd = &cobra.Command{
	Use:   "rate [title-id] [rating]",
	Short: "Rate a title (1-10)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid rating: %w", err)
		}
		if rating < models.MinRating || rating > models.MaxRating {
			return fmt.Errorf("rating must be between %d and %d", models.MinRating, models.MaxRating)
		}

		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}

		result, err := httpClient.Rate(args[0], rating)
		if err != nil {
			return fmt.Errorf("failed to rate title: %w", err)
		}

		fmt.Println("✓ Rating submitted successfully!")
		fmt.Printf("Your Rating: %d/10\n", result.Rating)
		if result.Warning != "" {
			color.Yellow("! %s", result.Warning)
			return nil
		}
		fmt.Printf("Average:     %.2f (%d ratings)\n", result.Average, result.Count)
		return nil
	},
}

var getRatingCmd = &cobra.Command{
	Use:   "get [title-id]",
	Short: "Get your rating for a title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}

		result, err := httpClient.MyRating(args[0])
		if err != nil {
			return fmt.Errorf("failed to get rating: %w", err)
		}

		fmt.Printf("Rating: %d/10\n", result.Rating)
		fmt.Printf("Rated at: %s\n", result.CreatedAt.Format(timeLayout))
		return nil
	},
}

var myRatingsCmd = &cobra.Command{
	Use:   "mine",
	Short: "List your ratings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}

		result, err := httpClient.MyRatings()
		if err != nil {
			return fmt.Errorf("failed to list ratings: %w", err)
		}
		if result.Total == 0 {
			fmt.Println("You have not rated anything yet.")
			return nil
		}
		for _, r := range result.Items {
			fmt.Printf("%-36s  %2d/10  %s\n", r.TitleID, r.Rating, r.CreatedAt.Format(timeLayout))
		}
		return nil
	},
}

func init() {
	ratingCmd.AddCommand(rateCmd, getRatingCmd, myRatingsCmd)
}
