package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var userRmCmd = &cobra.Command{
	Use:   "rm <user-id>",
	Short: "Delete a user and everything attached to them",
	Long: `Deletes the user row. Template references and attendance history go
with it (cascade), and the on-disk template artifact is removed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserRm,
}

func init() {
	userCmd.AddCommand(userRmCmd)
}

func runUserRm(cmd *cobra.Command, args []string) error {
	userID := args[0]

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, templates, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	if err := db.DeleteUser(cmd.Context(), userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := templates.Delete(userID); err != nil {
		return fmt.Errorf("delete template artifact: %w", err)
	}

	fmt.Printf("Deleted user %s (templates and attendance history included)\n", userID)
	return nil
}
