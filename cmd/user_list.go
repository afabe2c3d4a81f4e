package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Long: `Lists users with their enrollment state. The --find filter matches
display names ignoring case and diacritics, so "novak" finds "Jan Novák".`,
	Args: cobra.NoArgs,
	RunE: runUserList,
}

func init() {
	userCmd.AddCommand(userListCmd)

	userListCmd.Flags().String("status", "", "Filter by status (active, inactive)")
	userListCmd.Flags().String("find", "", "Filter by display name (diacritics-insensitive)")
}

func runUserList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, _, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	users, err := db.ListUsers(cmd.Context(), mustGetString(cmd, "status"), mustGetString(cmd, "find"))
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tNAME\tROLE\tSTATUS\tTEMPLATES\tCREATED")
	for _, u := range users {
		templates, err := db.TemplatesByUser(cmd.Context(), u.UserID)
		if err != nil {
			return err
		}
		samples := 0
		for _, t := range templates {
			samples += t.SampleCount
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			u.UserID, u.Name, u.Role, u.Status, samples, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
