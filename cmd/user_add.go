package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/store"
)

var userAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Create a user without enrolling a face",
	Long: `Creates the user record only. Templates are added later with
"facegate enroll", which also creates the user when it does not exist yet.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

func init() {
	userCmd.AddCommand(userAddCmd)

	userAddCmd.Flags().String("name", "", "Display name")
	userAddCmd.Flags().String("role", "", "Role tag (e.g. student, staff)")
	userAddCmd.Flags().String("qr", "", "QR code identifier")
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	userID := args[0]

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, _, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	user := &store.User{
		UserID: userID,
		Name:   mustGetString(cmd, "name"),
		Role:   mustGetString(cmd, "role"),
		QRCode: mustGetString(cmd, "qr"),
	}
	if err := db.CreateUser(cmd.Context(), user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("Created user %s\n", userID)
	return nil
}
