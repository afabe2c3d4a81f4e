// Package enroll drives the enrollment capture loop: pull frames, keep the
// ones with exactly one face, and commit a fixed number of samples as the
// user's template artifact.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/facegate/facegate/internal/extract"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/store"
)

var (
	// ErrCancelled means the operation stopped before reaching the sample
	// count. No template is persisted.
	ErrCancelled = errors.New("enrollment cancelled")
	// ErrAlreadyEnrolled means the user has templates and append was not
	// requested.
	ErrAlreadyEnrolled = errors.New("user already enrolled")
	// ErrDuplicateFace means the captured face matches a different enrolled
	// user above the threshold.
	ErrDuplicateFace = errors.New("face already enrolled under another user")
)

// Params configures one enrollment session.
type Params struct {
	UserID string
	Name   string
	Role   string
	QRCode string

	// Samples is the number of accepted frames required to commit.
	Samples int
	// Append stacks new samples onto existing templates instead of
	// refusing re-enrollment.
	Append bool
	// Replace discards the user's existing templates and starts over with
	// this session's samples.
	Replace bool
	// DuplicateThreshold enables the duplicate guard: if the first accepted
	// sample matches another user's template at or above this similarity,
	// enrollment aborts. Zero disables the guard.
	DuplicateThreshold float64
}

// Outcome reports a committed enrollment.
type Outcome struct {
	UserID           string
	Samples          int
	ArtifactPath     string
	SkippedNoFace    int
	SkippedAmbiguous int
}

// Engine collects enrollment samples and commits them atomically.
type Engine struct {
	extractor extract.Extractor
	templates *gallery.TemplateStore
	db        *store.Store
	snapshot  *gallery.Gallery // may be nil; only used by the duplicate guard
	log       *logrus.Logger

	// Progress is called after each accepted sample. The CLI hangs a
	// progress bar off it; tests leave it nil.
	Progress func(done, total int)
}

// New creates an enrollment engine. snapshot may be nil when no duplicate
// guard is wanted.
func New(extractor extract.Extractor, templates *gallery.TemplateStore, db *store.Store, snapshot *gallery.Gallery, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		extractor: extractor,
		templates: templates,
		db:        db,
		snapshot:  snapshot,
		log:       log,
	}
}

// Enroll runs the capture loop until params.Samples frames with exactly one
// face have been accepted, then commits all vectors at once. Cancellation
// (context or frame-source exhaustion) before that point persists nothing.
func (e *Engine) Enroll(ctx context.Context, params Params, frames extract.Source) (*Outcome, error) {
	if params.UserID == "" {
		return nil, errors.New("user id is empty")
	}
	if params.Samples <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", params.Samples)
	}

	if err := e.ensureUser(ctx, params); err != nil {
		return nil, err
	}

	existing, err := e.db.TemplatesByUser(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 && !params.Append && !params.Replace {
		return nil, fmt.Errorf("user %s has %d template(s): %w", params.UserID, len(existing), ErrAlreadyEnrolled)
	}

	outcome := &Outcome{UserID: params.UserID}
	samples := make([][]float64, 0, params.Samples)

	for len(samples) < params.Samples {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w after %d of %d samples", ErrCancelled, len(samples), params.Samples)
		}

		frame, err := frames.Next(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w after %d of %d samples", ErrCancelled, len(samples), params.Samples)
		case err != nil:
			return nil, fmt.Errorf("pull frame: %w", err)
		}

		faces, err := e.extractor.Detect(ctx, frame)
		if err != nil {
			return nil, err
		}

		switch len(faces) {
		case 0:
			outcome.SkippedNoFace++
			e.log.WithField("user_id", params.UserID).Debug("no face in frame, skipping")
			continue
		case 1:
			// fall through
		default:
			outcome.SkippedAmbiguous++
			e.log.WithFields(logrus.Fields{
				"user_id": params.UserID,
				"faces":   len(faces),
			}).Warn("ambiguous frame: more than one face, skipping")
			continue
		}

		face := faces[0]
		if len(samples) == 0 && params.DuplicateThreshold > 0 {
			if err := e.checkDuplicate(params, face.Embedding); err != nil {
				return nil, err
			}
		}

		samples = append(samples, face.Embedding)
		e.log.WithFields(logrus.Fields{
			"user_id":   params.UserID,
			"sample":    len(samples),
			"of":        params.Samples,
			"det_score": face.DetScore,
		}).Info("enrollment sample accepted")
		if e.Progress != nil {
			e.Progress(len(samples), params.Samples)
		}
	}

	return e.commit(ctx, params, outcome, samples)
}

func (e *Engine) ensureUser(ctx context.Context, params Params) error {
	_, err := e.db.GetUser(ctx, params.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return e.db.CreateUser(ctx, &store.User{
			UserID: params.UserID,
			Name:   params.Name,
			Role:   params.Role,
			QRCode: params.QRCode,
		})
	}
	return err
}

func (e *Engine) checkDuplicate(params Params, probe []float64) error {
	if e.snapshot == nil {
		return nil
	}
	owner, sim, ok := e.snapshot.NearestUser(probe)
	if !ok || owner == params.UserID {
		return nil
	}
	if sim >= params.DuplicateThreshold {
		return fmt.Errorf("%w: matches %s at %.3f", ErrDuplicateFace, owner, sim)
	}
	return nil
}

// commit persists all samples at once: artifact first (atomic rename), then
// the template reference row. A failed reference insert rolls the fresh
// artifact back so disk and database stay consistent. Replace rewrites the
// artifact and drops the user's previous reference rows.
func (e *Engine) commit(ctx context.Context, params Params, outcome *Outcome, samples [][]float64) (*Outcome, error) {
	var (
		path string
		err  error
	)
	if params.Append {
		path, err = e.templates.Append(params.UserID, samples)
	} else {
		path, err = e.templates.Save(params.UserID, samples)
	}
	if err != nil {
		return nil, fmt.Errorf("persist templates: %w", err)
	}

	if params.Replace {
		if err := e.db.DeleteTemplates(ctx, params.UserID); err != nil {
			return nil, fmt.Errorf("drop previous template references: %w", err)
		}
	}

	if _, err := e.db.AddTemplate(ctx, params.UserID, path, len(samples)); err != nil {
		if !params.Append {
			if rmErr := e.templates.Delete(params.UserID); rmErr != nil {
				e.log.WithError(rmErr).WithField("user_id", params.UserID).
					Error("could not remove artifact after failed template insert")
			}
		}
		return nil, fmt.Errorf("record template reference: %w", err)
	}

	outcome.Samples = len(samples)
	outcome.ArtifactPath = path
	e.log.WithFields(logrus.Fields{
		"user_id":  params.UserID,
		"samples":  outcome.Samples,
		"artifact": path,
		"append":   params.Append,
	}).Info("enrollment committed")
	return outcome, nil
}
