package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"cinehub/internal/microservices/http-api/dto"
	"cinehub/internal/microservices/http-api/service"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Curated list commands",
}

var listsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}

		result, err := httpClient.Lists()
		if err != nil {
			return fmt.Errorf("failed to get lists: %w", err)
		}
		if result.Total == 0 {
			fmt.Println("You have no lists.")
			return nil
		}
		for _, l := range result.Items {
			visibility := "private"
			if l.IsPublic {
				visibility = "public"
			}
			fmt.Printf("%-36s  %-7s  %s\n", l.ID, visibility, l.Name)
		}
		return nil
	},
}

var listsCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dto.CreateListRequest{Name: args[0]}
		req.Description, _ = cmd.Flags().GetString("description")
		req.IsPublic, _ = cmd.Flags().GetBool("public")

		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}
		list, err := httpClient.CreateList(req)
		if err != nil {
			return fmt.Errorf("failed to create list: %w", err)
		}
		fmt.Println("✓ List created")
		fmt.Printf("ID: %s\n", list.ID)
		return nil
	},
}

var listsDeleteCmd = &cobra.Command{
	Use:   "delete [list-id]",
	Short: "Delete a list and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("yes")
		if !confirm {
			return fmt.Errorf("deleting a list removes all of its items; pass --yes to confirm")
		}

		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}
		if err := httpClient.DeleteList(args[0], true); err != nil {
			return fmt.Errorf("failed to delete list: %w", err)
		}
		fmt.Println("✓ List deleted")
		return nil
	},
}

var listsItemsCmd = &cobra.Command{
	Use:   "items [list-id]",
	Short: "Show the titles in a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}
		result, err := httpClient.ListItems(args[0])
		if err != nil {
			return fmt.Errorf("failed to get list items: %w", err)
		}
		if result.Total == 0 {
			fmt.Println("This list is empty.")
			return nil
		}
		for _, item := range result.Items {
			fmt.Printf("%3d. %s\n", item.Position, item.TitleID)
		}
		return nil
	},
}

var listsAddCmd = &cobra.Command{
	Use:   "add [list-id] [title-id]",
	Short: "Append a title to a list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}
		outcome, err := httpClient.AddListItem(args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to add to list: %w", err)
		}
		if outcome == service.AlreadyInList {
			fmt.Println("Already in this list.")
			return nil
		}
		fmt.Println("✓ Added to list")
		return nil
	},
}

var listsRemoveCmd = &cobra.Command{
	Use:   "remove [list-id] [title-id]",
	Short: "Remove a title from a list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := GetAuthenticatedClient()
		if err != nil {
			return err
		}
		if err := httpClient.RemoveListItem(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to remove from list: %w", err)
		}
		fmt.Println("✓ Removed from list")
		return nil
	},
}

func init() {
	listsCreateCmd.Flags().String("description", "", "optional description")
	listsCreateCmd.Flags().Bool("public", false, "make the list visible to everyone")
	listsDeleteCmd.Flags().Bool("yes", false, "confirm deletion")

	listsCmd.AddCommand(listsShowCmd, listsCreateCmd, listsDeleteCmd, listsItemsCmd, listsAddCmd, listsRemoveCmd)
}
