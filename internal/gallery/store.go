package gallery

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Template artifacts are one file per user: a fixed header followed by the
// user's embeddings stacked in capture order, little-endian float64.
const (
	artifactMagic   = "FGEM"
	artifactVersion = 1
	// ArtifactExt is the extension of on-disk template artifacts.
	ArtifactExt = ".emb"
)

// ErrDimensionMismatch marks an artifact whose vectors disagree with the
// configured embedding dimension. The artifact is skipped, never deleted.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrNoTemplates is returned when a user has no stored artifact.
var ErrNoTemplates = errors.New("no templates stored")

// TemplateStore persists per-user embedding template artifacts on disk.
// Writes for the same user are serialized; different users may write
// concurrently.
type TemplateStore struct {
	dir string
	dim int
	log *logrus.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTemplateStore creates the store rooted at dir, creating it if needed.
func NewTemplateStore(dir string, dim int, log *logrus.Logger) (*TemplateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create embeddings dir: %w", err)
	}
	if log == nil {
		log = logrus.New()
	}
	return &TemplateStore{
		dir:   dir,
		dim:   dim,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dim returns the embedding dimension the store validates against.
func (s *TemplateStore) Dim() int { return s.dim }

// Path returns the artifact path for a user id.
func (s *TemplateStore) Path(userID string) string {
	return filepath.Join(s.dir, userID+ArtifactExt)
}

func (s *TemplateStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Save writes all vectors for a user as a single artifact. The write is
// atomic: vectors land in a temp file that is renamed over the final path,
// so a crash mid-write leaves either the old artifact or none at all.
func (s *TemplateStore) Save(userID string, vectors [][]float64) (string, error) {
	if userID == "" {
		return "", errors.New("user id is empty")
	}
	if len(vectors) == 0 {
		return "", errors.New("no vectors to save")
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return "", fmt.Errorf("vector %d has %d components, want %d: %w", i, len(v), s.dim, ErrDimensionMismatch)
		}
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.saveLocked(userID, vectors)
}

// saveLocked writes the artifact. The caller holds the user lock.
func (s *TemplateStore) saveLocked(userID string, vectors [][]float64) (string, error) {
	final := s.Path(userID)
	tmp := final + ".tmp-" + uuid.NewString()

	if err := writeArtifact(tmp, vectors); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("commit artifact for %s: %w", userID, err)
	}
	return final, nil
}

// Append stacks vectors onto a user's existing artifact, or creates it when
// none exists. The user lock covers the whole read-modify-write, so two
// concurrent appends for the same user cannot drop each other's vectors.
func (s *TemplateStore) Append(userID string, vectors [][]float64) (string, error) {
	if userID == "" {
		return "", errors.New("user id is empty")
	}
	if len(vectors) == 0 {
		return "", errors.New("no vectors to save")
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return "", fmt.Errorf("vector %d has %d components, want %d: %w", i, len(v), s.dim, ErrDimensionMismatch)
		}
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.Load(userID)
	if err != nil && !errors.Is(err, ErrNoTemplates) {
		return "", err
	}
	return s.saveLocked(userID, append(existing, vectors...))
}

// Load reads one user's templates.
func (s *TemplateStore) Load(userID string) ([][]float64, error) {
	vectors, dim, err := readArtifact(s.Path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNoTemplates)
		}
		return nil, err
	}
	if dim != s.dim {
		return nil, fmt.Errorf("user %s: artifact dim %d, want %d: %w", userID, dim, s.dim, ErrDimensionMismatch)
	}
	return vectors, nil
}

// Delete removes a user's artifact. Missing artifacts are not an error.
func (s *TemplateStore) Delete(userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.Path(userID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact for %s: %w", userID, err)
	}
	return nil
}

// LoadAll reads every artifact in the store directory. Artifacts with a
// mismatched dimension or a corrupt header are logged and excluded; a single
// bad file never fails the whole load. The call is read-only and idempotent.
func (s *TemplateStore) LoadAll() (map[string][][]float64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read embeddings dir: %w", err)
	}

	users := make(map[string][][]float64)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ArtifactExt) {
			continue
		}
		userID := strings.TrimSuffix(name, ArtifactExt)
		vectors, dim, err := readArtifact(filepath.Join(s.dir, name))
		if err != nil {
			s.log.WithError(err).WithField("artifact", name).Warn("skipping unreadable template artifact")
			continue
		}
		if dim != s.dim {
			s.log.WithFields(logrus.Fields{
				"artifact": name,
				"dim":      dim,
				"want":     s.dim,
			}).Warn("skipping template artifact: embedding dimension mismatch")
			continue
		}
		users[userID] = vectors
	}
	return users, nil
}

func writeArtifact(path string, vectors [][]float64) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}

	dim := len(vectors[0])
	header := make([]byte, 0, 14)
	header = append(header, artifactMagic...)
	header = binary.LittleEndian.AppendUint16(header, artifactVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(dim))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(vectors)))
	if _, err := f.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write artifact header: %w", err)
	}

	buf := make([]byte, 8*dim)
	for _, v := range vectors {
		for i, x := range v {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
		}
		if _, err := f.Write(buf); err != nil {
			f.Close()
			return fmt.Errorf("write artifact vectors: %w", err)
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	return f.Close()
}

func readArtifact(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	header := make([]byte, 14)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, 0, fmt.Errorf("read artifact header: %w", err)
	}
	if string(header[:4]) != artifactMagic {
		return nil, 0, fmt.Errorf("bad artifact magic %q", header[:4])
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != artifactVersion {
		return nil, 0, fmt.Errorf("unsupported artifact version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(header[6:10]))
	count := int(binary.LittleEndian.Uint32(header[10:14]))
	if dim <= 0 || count <= 0 {
		return nil, 0, fmt.Errorf("invalid artifact shape %dx%d", count, dim)
	}

	vectors := make([][]float64, 0, count)
	buf := make([]byte, 8*dim)
	for range count {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, 0, fmt.Errorf("artifact truncated: %w", err)
		}
		v := make([]float64, dim)
		for i := range v {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		}
		vectors = append(vectors, v)
	}
	return vectors, dim, nil
}
