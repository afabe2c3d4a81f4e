package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/gallery"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect the enrolled template gallery",
}

var galleryInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show gallery contents and flag inconsistencies",
	Long: `Loads the gallery the same way a recognition session would and
prints per-user template counts. Artifacts on disk without a database row
(and the reverse) are flagged; dimension-mismatched artifacts are excluded
from the load and show up as missing.`,
	Args: cobra.NoArgs,
	RunE: runGalleryInfo,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryInfoCmd)
}

func runGalleryInfo(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, templates, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	snapshot, err := gallery.Load(templates)
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	users, err := db.ListUsers(cmd.Context(), "", "")
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(users))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tNAME\tSTATUS\tTEMPLATES\tNOTE")
	for _, u := range users {
		known[u.UserID] = true
		note := ""
		count := len(snapshot.Templates(u.UserID))
		refs, err := db.TemplatesByUser(cmd.Context(), u.UserID)
		if err != nil {
			return err
		}
		if len(refs) > 0 && count == 0 {
			note = "artifact missing or rejected on load"
		}
		if len(refs) == 0 && count > 0 {
			note = "artifact on disk without a template record"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", u.UserID, u.Name, u.Status, count, note)
	}
	for _, id := range snapshot.UserIDs() {
		if !known[id] {
			fmt.Fprintf(w, "%s\t-\t-\t%d\torphaned artifact, no user row\n", id, len(snapshot.Templates(id)))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d user(s), %d template vector(s), dim %d\n",
		snapshot.Size(), snapshot.TemplateCount(), snapshot.Dim())
	return nil
}
