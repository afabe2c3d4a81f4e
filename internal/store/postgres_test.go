//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
		return nil
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}

	s, err := FromDB(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestPostgresParity(t *testing.T) {
	s := setupPostgres(t)
	if s == nil {
		return
	}
	ctx := context.Background()

	if err := s.CreateUser(ctx, &User{UserID: "p1", Name: "Postgres User", Role: "staff"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// FK violation behaves like sqlite.
	if _, err := s.AddTemplate(ctx, "ghost", "/tmp/ghost.emb", 5); !errors.Is(err, ErrForeignKey) {
		t.Errorf("template FK err = %v, want ErrForeignKey", err)
	}
	if _, err := s.RecordAttendance(ctx, &Attendance{UserID: "ghost", ThresholdUsed: 0.5, SystemDecision: "accept"}); !errors.Is(err, ErrForeignKey) {
		t.Errorf("attendance FK err = %v, want ErrForeignKey", err)
	}

	// Cascade behaves like sqlite.
	if _, err := s.AddTemplate(ctx, "p1", "/tmp/p1.emb", 5); err != nil {
		t.Fatal(err)
	}
	score := 0.91
	if _, err := s.RecordAttendance(ctx, &Attendance{
		UserID: "p1", RecognitionScore: &score, FaceVerified: true,
		ThresholdUsed: 0.5, SystemDecision: "accept",
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteUser(ctx, "p1"); err != nil {
		t.Fatal(err)
	}

	templates, err := s.TemplatesByUser(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 0 {
		t.Errorf("templates survived cascade: %d", len(templates))
	}
	n, err := s.AttendanceCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("attendance survived cascade: %d rows", n)
	}
}
