package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestDetect(t *testing.T) {
	srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect/faces" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "fake-jpeg" {
				t.Errorf("frame bytes = %q", data)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "buffalo_l",
			"dim":   3,
			"faces": []map[string]any{
				{"embedding": []float64{1, 0, 0}, "bbox": []float64{10, 10, 50, 50}, "det_score": 0.98},
			},
		})
	})

	c := NewClient(srv.URL, 3)
	faces, err := c.Detect(context.Background(), []byte("fake-jpeg"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("got %d faces, want 1", len(faces))
	}
	if faces[0].DetScore != 0.98 {
		t.Errorf("det score = %v", faces[0].DetScore)
	}
	if len(faces[0].Embedding) != 3 {
		t.Errorf("embedding dim = %d", len(faces[0].Embedding))
	}
}

func TestDetectNoFaces(t *testing.T) {
	srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "buffalo_l", "dim": 3, "faces": []any{}})
	})

	faces, err := NewClient(srv.URL, 3).Detect(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("got %d faces, want 0", len(faces))
	}
}

func TestDetectServiceError(t *testing.T) {
	srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	_, err := NewClient(srv.URL, 3).Detect(context.Background(), []byte("x"))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

func TestDetectMalformedResponse(t *testing.T) {
	srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := NewClient(srv.URL, 3).Detect(context.Background(), []byte("x"))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

func TestDetectDimensionMismatch(t *testing.T) {
	srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"dim":   2,
			"faces": []map[string]any{{"embedding": []float64{1, 0}}},
		})
	})

	_, err := NewClient(srv.URL, 3).Detect(context.Background(), []byte("x"))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction for wrong embedding width", err)
	}
}

func TestDetectUnreachableService(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 3)
	_, err := c.Detect(context.Background(), []byte("x"))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}
