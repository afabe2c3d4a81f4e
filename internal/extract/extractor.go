// Package extract talks to the face detection/embedding service and supplies
// camera-less frame sources. The service is a black box: one image in, zero
// or more embeddings out.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// ErrExtraction wraps any failure of the extractor service or malformed
// output. Callers abort the current frame or call; nothing is persisted.
var ErrExtraction = errors.New("extraction failed")

// Face is one detected face in a frame.
type Face struct {
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	DetScore  float64   `json:"det_score"`
}

// Extractor produces face embeddings from an image frame.
type Extractor interface {
	// Detect returns one Face per detected face, possibly none.
	Detect(ctx context.Context, frame []byte) ([]Face, error)
}

// Client calls the extractor service over HTTP.
type Client struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewClient creates an extractor client. dim is the embedding dimension the
// caller expects; responses with a different width fail extraction rather
// than leaking bad vectors into the pipeline.
func NewClient(baseURL string, dim int) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{},
	}
}

// detectResponse represents the response from the extractor service.
type detectResponse struct {
	Model string `json:"model"`
	Dim   int    `json:"dim"`
	Faces []Face `json:"faces"`
}

// Detect posts the frame to the service and returns the detected faces.
func (c *Client) Detect(ctx context.Context, frame []byte) ([]Face, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("%w: create form file: %v", ErrExtraction, err)
	}
	if _, err := part.Write(frame); err != nil {
		return nil, fmt.Errorf("%w: write frame: %v", ErrExtraction, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart writer: %v", ErrExtraction, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect/faces", &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrExtraction, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrExtraction, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: service status %d: %s", ErrExtraction, resp.StatusCode, string(body))
	}

	var parsed detectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrExtraction, err)
	}

	for i, face := range parsed.Faces {
		if len(face.Embedding) != c.dim {
			return nil, fmt.Errorf("%w: face %d has %d-D embedding, want %d-D",
				ErrExtraction, i, len(face.Embedding), c.dim)
		}
	}
	return parsed.Faces, nil
}
