// Package recognize matches probe embeddings against the gallery and records
// attendance decisions.
package recognize

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/facegate/facegate/internal/extract"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/matching"
	"github.com/facegate/facegate/internal/store"
)

var (
	// ErrNoSubject is returned when a result without a candidate user is
	// passed to Record; the ledger requires an existing user to reference.
	ErrNoSubject = errors.New("decision has no candidate user")
	// ErrNoLedger is returned by Record on an engine built for score-only
	// runs, without an attendance store.
	ErrNoLedger = errors.New("no attendance ledger configured")
)

// Result is the decision for one detected face in a frame.
type Result struct {
	// UserID is the best candidate, empty for unknown decisions and for
	// rejects with an empty gallery.
	UserID string `json:"user_id,omitempty"`
	// Score is nil when no comparison happened (empty gallery).
	Score     *float64          `json:"score"`
	Threshold float64           `json:"threshold"`
	Decision  matching.Decision `json:"decision"`

	// FaceVerified mirrors whether a similarity score was computed.
	// LivenessVerified is reserved and always false.
	FaceVerified     bool `json:"face_verified"`
	LivenessVerified bool `json:"liveness_verified"`

	BBox     []float64 `json:"bbox,omitempty"`
	DetScore float64   `json:"det_score,omitempty"`
}

// Engine scores probe faces against a fixed gallery snapshot. One engine is
// one session: every decision it records carries the same session id.
type Engine struct {
	extractor extract.Extractor
	snapshot  *gallery.Gallery
	db        *store.Store // ledger; nil for score-only runs, Record then fails with ErrNoLedger
	threshold float64
	sessionID string
	log       *logrus.Logger
}

// New creates a recognition engine for one session.
func New(extractor extract.Extractor, snapshot *gallery.Gallery, db *store.Store, threshold float64, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		extractor: extractor,
		snapshot:  snapshot,
		db:        db,
		threshold: threshold,
		sessionID: uuid.NewString(),
		log:       log,
	}
}

// SessionID returns the id stamped on this engine's ledger rows.
func (e *Engine) SessionID() string { return e.sessionID }

// Recognize extracts faces from the frame and matches each probe against the
// gallery. Extraction failure fails the whole call with no results, so a bad
// frame can never produce partial attendance rows.
func (e *Engine) Recognize(ctx context.Context, frame []byte) ([]Result, error) {
	faces, err := e.extractor.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}

	candidates := e.snapshot.Candidates()
	results := make([]Result, 0, len(faces))
	for _, face := range faces {
		m := matching.Match(face.Embedding, candidates, e.threshold)
		r := Result{
			UserID:       m.UserID,
			Score:        m.Score,
			Threshold:    m.Threshold,
			Decision:     m.Decision,
			FaceVerified: m.Score != nil,
			BBox:         face.BBox,
			DetScore:     face.DetScore,
		}
		results = append(results, r)

		fields := logrus.Fields{
			"session_id": e.sessionID,
			"decision":   r.Decision,
			"threshold":  r.Threshold,
		}
		if r.UserID != "" {
			fields["user_id"] = r.UserID
		}
		if r.Score != nil {
			fields["score"] = *r.Score
		}
		e.log.WithFields(fields).Info("recognition decision")
	}
	return results, nil
}

// Record appends one decision to the attendance ledger. Only decisions with
// a candidate user can be recorded; unknown decisions and empty-gallery
// rejects have nothing to reference.
func (e *Engine) Record(ctx context.Context, r Result) (int64, error) {
	if e.db == nil {
		return 0, ErrNoLedger
	}
	if r.UserID == "" {
		return 0, ErrNoSubject
	}
	return e.db.RecordAttendance(ctx, &store.Attendance{
		UserID:           r.UserID,
		RecognitionScore: r.Score,
		FaceVerified:     r.FaceVerified,
		LivenessVerified: r.LivenessVerified,
		ThresholdUsed:    r.Threshold,
		SystemDecision:   string(r.Decision),
		SessionID:        e.sessionID,
	})
}

// RecognizeAndRecord runs Recognize and appends a ledger row for every
// result that names a candidate. Results without a candidate are returned
// but not recorded.
func (e *Engine) RecognizeAndRecord(ctx context.Context, frame []byte) ([]Result, error) {
	results, err := e.Recognize(ctx, frame)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.UserID == "" {
			continue
		}
		if _, err := e.Record(ctx, r); err != nil {
			return results, err
		}
	}
	return results, nil
}
