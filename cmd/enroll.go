package cmd

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/enroll"
	"github.com/facegate/facegate/internal/extract"
	"github.com/facegate/facegate/internal/gallery"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <user-id>",
	Short: "Enroll a user from face frames",
	Long: `Pulls frames from a directory, keeps the ones with exactly one
detected face, and commits the configured number of samples as the user's
template artifact. Frames with zero faces are skipped quietly; frames with
more than one face are skipped with a warning.

If the frames run out (or the run is interrupted) before enough samples were
accepted, nothing is persisted.

Examples:
  # Enroll from captured frames
  facegate enroll s1023 --frames ./captures/s1023 --name "Jan Novák" --role student

  # Add more samples to an existing enrollment
  facegate enroll s1023 --frames ./captures/s1023-retake --append

  # Throw the old templates away and enroll from scratch
  facegate enroll s1023 --frames ./captures/s1023-redo --replace`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("frames", "", "Directory of frame images (required)")
	enrollCmd.Flags().String("name", "", "Display name (used when the user is created)")
	enrollCmd.Flags().String("role", "", "Role tag (used when the user is created)")
	enrollCmd.Flags().String("qr", "", "QR code identifier (used when the user is created)")
	enrollCmd.Flags().Int("samples", 0, "Samples to capture (default from config)")
	enrollCmd.Flags().Bool("append", false, "Append to existing templates instead of refusing")
	enrollCmd.Flags().Bool("replace", false, "Discard existing templates and start over")
	enrollCmd.Flags().Bool("force", false, "Skip the duplicate-face guard")
	enrollCmd.MarkFlagsMutuallyExclusive("append", "replace")
	_ = enrollCmd.MarkFlagRequired("frames")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	userID := args[0]

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, templates, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	frames, err := extract.NewDirSource(mustGetString(cmd, "frames"))
	if err != nil {
		return err
	}

	snapshot, err := gallery.Load(templates)
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	samples := mustGetInt(cmd, "samples")
	if samples == 0 {
		samples = cfg.Matching.SampleCount
	}
	dupThreshold := cfg.Matching.Threshold
	if mustGetBool(cmd, "force") {
		dupThreshold = 0
	}

	extractor := extract.NewClient(cfg.Extractor.URL, cfg.Extractor.Dim)
	engine := enroll.New(extractor, templates, db, snapshot, log)

	bar := progressbar.Default(int64(samples), "capturing samples")
	engine.Progress = func(done, total int) {
		_ = bar.Set(done)
	}

	outcome, err := engine.Enroll(cmd.Context(), enroll.Params{
		UserID:             userID,
		Name:               mustGetString(cmd, "name"),
		Role:               mustGetString(cmd, "role"),
		QRCode:             mustGetString(cmd, "qr"),
		Samples:            samples,
		Append:             mustGetBool(cmd, "append"),
		Replace:            mustGetBool(cmd, "replace"),
		DuplicateThreshold: dupThreshold,
	}, frames)
	if err != nil {
		_ = bar.Close()
		switch {
		case errors.Is(err, enroll.ErrCancelled):
			fmt.Println("Enrollment cancelled, nothing was saved.")
			return err
		case errors.Is(err, enroll.ErrAlreadyEnrolled):
			fmt.Println("User is already enrolled. Pass --append to add more samples or --replace to start over.")
			return err
		default:
			return err
		}
	}
	_ = bar.Finish()

	fmt.Printf("Enrolled %s: %d samples saved to %s\n", outcome.UserID, outcome.Samples, outcome.ArtifactPath)
	if outcome.SkippedNoFace > 0 || outcome.SkippedAmbiguous > 0 {
		fmt.Printf("Skipped %d frame(s) without a face, %d ambiguous frame(s)\n",
			outcome.SkippedNoFace, outcome.SkippedAmbiguous)
	}
	return nil
}
