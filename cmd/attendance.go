package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/store"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Query the attendance ledger",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance records, newest first",
	Long: `Lists ledger rows joined with user name and role. Dates are parsed
as YYYY-MM-DD.

Examples:
  facegate attendance list --limit 20
  facegate attendance list --user s1023
  facegate attendance list --since 2026-08-01 --until 2026-08-31`,
	Args: cobra.NoArgs,
	RunE: runAttendanceList,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)

	attendanceListCmd.Flags().String("user", "", "Filter by user id")
	attendanceListCmd.Flags().String("since", "", "Only records on or after this date (YYYY-MM-DD)")
	attendanceListCmd.Flags().String("until", "", "Only records on or before this date (YYYY-MM-DD)")
	attendanceListCmd.Flags().Int("limit", 50, "Maximum rows (0 = no limit)")
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, _, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	filter := store.AttendanceFilter{
		UserID: mustGetString(cmd, "user"),
		Limit:  mustGetInt(cmd, "limit"),
	}
	if s := mustGetString(cmd, "since"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		filter.Since = t
	}
	if s := mustGetString(cmd, "until"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("parse --until: %w", err)
		}
		// Inclusive end of day.
		filter.Until = t.Add(24*time.Hour - time.Nanosecond)
	}

	entries, err := db.ListAttendance(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list attendance: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUSER ID\tNAME\tDECISION\tSCORE\tTHRESHOLD")
	for _, e := range entries {
		score := "-"
		if e.RecognitionScore != nil {
			score = fmt.Sprintf("%.3f", *e.RecognitionScore)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.UserID, e.Name,
			e.SystemDecision, score, e.ThresholdUsed)
	}
	return w.Flush()
}
