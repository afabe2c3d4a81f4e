package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/extract"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/matching"
	"github.com/facegate/facegate/internal/recognize"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Match faces in frames against the enrolled gallery",
	Long: `Runs recognition over every frame in a directory. Each detected face
is scored against every enrolled user; the decision per face is accept,
reject, or unknown (tied top candidates).

With --record, every decision that names a candidate user is appended to the
attendance ledger. All rows of one run share a session id.

Examples:
  # Score frames without touching the ledger
  facegate recognize --frames ./gate-cam

  # Record attendance decisions
  facegate recognize --frames ./gate-cam --record

  # Stricter acceptance for a sensitive door
  facegate recognize --frames ./gate-cam --record --threshold 0.7

  # Save frames with detection boxes drawn in
  facegate recognize --frames ./gate-cam --save-annotated ./annotated`,
	Args: cobra.NoArgs,
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().String("frames", "", "Directory of frame images (required)")
	recognizeCmd.Flags().Float64("threshold", 0, "Similarity threshold override (default from config)")
	recognizeCmd.Flags().Bool("record", false, "Append decisions to the attendance ledger")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
	recognizeCmd.Flags().String("save-annotated", "", "Directory to save frames with detection boxes")
	_ = recognizeCmd.MarkFlagRequired("frames")
}

// frameReport is one frame's results in the JSON output.
type frameReport struct {
	Frame   int                `json:"frame"`
	Results []recognize.Result `json:"results"`
}

// runReport is the JSON output structure.
type runReport struct {
	SessionID string        `json:"session_id"`
	Threshold float64       `json:"threshold"`
	Users     int           `json:"gallery_users"`
	Frames    []frameReport `json:"frames"`
}

// resolveThreshold prefers an explicitly set --threshold over the configured
// default. Zero is a valid threshold, so this checks whether the flag was
// passed rather than comparing against a sentinel value.
func resolveThreshold(cmd *cobra.Command, configured float64) float64 {
	if cmd.Flags().Changed("threshold") {
		return mustGetFloat64(cmd, "threshold")
	}
	return configured
}

func runRecognize(cmd *cobra.Command, args []string) error {
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

	threshold := resolveThreshold(cmd, cfg.Matching.Threshold)

	frames, err := extract.NewDirSource(mustGetString(cmd, "frames"))
	if err != nil {
		return err
	}

	record := mustGetBool(cmd, "record")
	annotateDir := mustGetString(cmd, "save-annotated")
	if annotateDir != "" {
		if err := os.MkdirAll(annotateDir, 0o755); err != nil {
			return fmt.Errorf("create annotated dir: %w", err)
		}
	}

	extractor := extract.NewClient(cfg.Extractor.URL, cfg.Extractor.Dim)
	engine := recognize.New(extractor, snapshot, db, threshold, log)

	report := runReport{
		SessionID: engine.SessionID(),
		Threshold: threshold,
		Users:     snapshot.Size(),
	}
	asJSON := mustGetBool(cmd, "json")

	frameNo := 0
	for {
		frame, err := frames.Next(cmd.Context())
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		frameNo++

		var results []recognize.Result
		if record {
			results, err = engine.RecognizeAndRecord(cmd.Context(), frame)
		} else {
			results, err = engine.Recognize(cmd.Context(), frame)
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", frameNo, err)
		}

		if asJSON {
			report.Frames = append(report.Frames, frameReport{Frame: frameNo, Results: results})
		} else {
			printResults(frameNo, results)
		}

		if annotateDir != "" && len(results) > 0 {
			out := filepath.Join(annotateDir, fmt.Sprintf("frame-%04d.jpg", frameNo))
			if err := saveAnnotatedFrame(frame, results, out); err != nil {
				log.WithError(err).WithField("frame", frameNo).Warn("could not save annotated frame")
			}
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("\nSession %s: %d frame(s) processed against %d enrolled user(s)\n",
		engine.SessionID(), frameNo, snapshot.Size())
	return nil
}

func printResults(frameNo int, results []recognize.Result) {
	if len(results) == 0 {
		fmt.Printf("frame %d: no faces\n", frameNo)
		return
	}
	for _, r := range results {
		switch {
		case r.Decision == matching.DecisionAccept:
			fmt.Printf("frame %d: ACCEPT %s (score %.3f, threshold %.2f)\n",
				frameNo, r.UserID, *r.Score, r.Threshold)
		case r.Decision == matching.DecisionUnknown:
			fmt.Printf("frame %d: UNKNOWN - tied candidates (score %.3f)\n", frameNo, *r.Score)
		case r.Score == nil:
			fmt.Printf("frame %d: REJECT - gallery is empty\n", frameNo)
		default:
			fmt.Printf("frame %d: REJECT - best candidate %s below threshold (score %.3f < %.2f)\n",
				frameNo, r.UserID, *r.Score, r.Threshold)
		}
	}
}
