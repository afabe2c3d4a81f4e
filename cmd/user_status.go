package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var userSetStatusCmd = &cobra.Command{
	Use:   "set-status <user-id> <active|inactive>",
	Short: "Activate or deactivate a user",
	Long: `Flips a user's status. Inactive users keep their templates and
attendance history; the status field is for operators filtering lists,
recognition still matches whoever is in the gallery.`,
	Args: cobra.ExactArgs(2),
	RunE: runUserSetStatus,
}

func init() {
	userCmd.AddCommand(userSetStatusCmd)
}

func runUserSetStatus(cmd *cobra.Command, args []string) error {
	userID, status := args[0], args[1]
	if status != "active" && status != "inactive" {
		return fmt.Errorf("status must be active or inactive, got %q", status)
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, _, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	if err := db.SetUserStatus(cmd.Context(), userID, status); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	fmt.Printf("User %s is now %s\n", userID, status)
	return nil
}
