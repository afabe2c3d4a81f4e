// Package store is the relational layer: users, template references, and the
// append-only attendance ledger. SQLite is the default backend; postgres and
// mysql DSNs select their drivers.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/facegate/facegate/internal/names"
)

var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForeignKey is returned when a write references a nonexistent user.
	ErrForeignKey = errors.New("foreign key violation")
	// ErrDuplicate is returned when creating a user whose id is taken.
	ErrDuplicate = errors.New("user already exists")
)

// Store wraps the database handle with the operations the engines need.
type Store struct {
	db *gorm.DB
}

// Open connects to the database selected by the DSN and runs migrations.
// A plain path (or file: URL) opens sqlite; postgres:// and mysql DSNs pick
// their dialects.
func Open(dsn string) (*Store, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromDB wraps an already-open gorm handle and runs migrations. Integration
// tests use this to point the store at a container database.
func FromDB(db *gorm.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	switch {
	case dsn == "":
		return nil, errors.New("empty database dsn")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), nil
	case strings.HasPrefix(dsn, "mysql://"):
		return mysql.Open(strings.TrimPrefix(dsn, "mysql://")), nil
	case strings.Contains(dsn, "@tcp("):
		return mysql.Open(dsn), nil
	default:
		// SQLite enforces foreign keys per connection, not per file.
		if !strings.Contains(dsn, "_pragma=foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=foreign_keys(1)"
		}
		return sqlite.Open(dsn), nil
	}
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&User{}, &FaceTemplate{}, &Attendance{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// wrapWriteErr maps driver-specific constraint failures onto the package
// sentinels so callers can match with errors.Is across backends.
func wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "foreign key"):
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(msg, "unique constraint"),
		strings.Contains(msg, "duplicate"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if strings.TrimSpace(user.UserID) == "" {
		return errors.New("user id is empty")
	}
	if user.Status == "" {
		user.Status = "active"
	}
	return wrapWriteErr(s.db.WithContext(ctx).Create(user).Error)
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns users, newest first, optionally filtered by status and a
// diacritics-insensitive name query.
func (s *Store) ListUsers(ctx context.Context, status, nameQuery string) ([]User, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var users []User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	if nameQuery == "" {
		return users, nil
	}

	// Name matching is normalized in Go rather than SQL so "Novák" and
	// "novak" compare equal on every backend.
	want := names.Normalize(nameQuery)
	filtered := users[:0]
	for _, u := range users {
		if strings.Contains(names.Normalize(u.Name), want) {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

// SetUserStatus flips a user between active and inactive.
func (s *Store) SetUserStatus(ctx context.Context, userID, status string) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("user_id = ?", userID).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// DeleteUser removes a user. Template references and attendance rows go with
// it via the cascade constraints; the on-disk artifact is the caller's to
// clean up.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Delete(&User{}, "user_id = ?", userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// AddTemplate records a template artifact reference for a user.
func (s *Store) AddTemplate(ctx context.Context, userID, embeddingPath string, sampleCount int) (*FaceTemplate, error) {
	tpl := &FaceTemplate{
		UserID:        userID,
		EmbeddingPath: embeddingPath,
		SampleCount:   sampleCount,
	}
	if err := wrapWriteErr(s.db.WithContext(ctx).Create(tpl).Error); err != nil {
		return nil, err
	}
	return tpl, nil
}

// TemplatesByUser returns a user's template references, newest first.
func (s *Store) TemplatesByUser(ctx context.Context, userID string) ([]FaceTemplate, error) {
	var templates []FaceTemplate
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&templates).Error
	return templates, err
}

// DeleteTemplates removes a user's template references. Used when a
// re-enrollment replaces the artifact rather than appending to it.
func (s *Store) DeleteTemplates(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Delete(&FaceTemplate{}, "user_id = ?", userID).Error
}

// RecordAttendance appends one decision to the ledger inside a transaction.
// The row is immutable once committed; a missing user fails with
// ErrForeignKey and leaves the ledger untouched.
func (s *Store) RecordAttendance(ctx context.Context, rec *Attendance) (int64, error) {
	if strings.TrimSpace(rec.UserID) == "" {
		return 0, errors.New("attendance record has no user id")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return 0, wrapWriteErr(err)
	}
	return rec.ID, nil
}

// AttendanceFilter narrows ListAttendance results.
type AttendanceFilter struct {
	UserID string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// ListAttendance returns ledger rows joined with user name and role, newest
// first.
func (s *Store) ListAttendance(ctx context.Context, filter AttendanceFilter) ([]AttendanceEntry, error) {
	q := s.db.WithContext(ctx).
		Table("attendance").
		Select("attendance.*, users.name, users.role").
		Joins("JOIN users ON users.user_id = attendance.user_id").
		Order("attendance.timestamp DESC")

	if filter.UserID != "" {
		q = q.Where("attendance.user_id = ?", filter.UserID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("attendance.timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("attendance.timestamp <= ?", filter.Until)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var entries []AttendanceEntry
	if err := q.Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// AttendanceCount returns the total number of ledger rows.
func (s *Store) AttendanceCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Attendance{}).Count(&n).Error
	return n, err
}
