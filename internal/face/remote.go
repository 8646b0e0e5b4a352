package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/disintegration/imaging"
)

// Remote delegates detection to an HTTP inference service.
type Remote struct {
	url    string
	minQ   float64
	client *http.Client
}

type remoteDetection struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

type remoteResponse struct {
	Detections []remoteDetection `json:"detections"`
}

// NewRemote returns a client for the service at opts.RemoteURL.
func NewRemote(opts Options) (*Remote, error) {
	if opts.RemoteURL == "" {
		return nil, fmt.Errorf("faces: remote detector url missing")
	}

	timeout := opts.RemoteTimeout

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Remote{
		url:    opts.RemoteURL,
		minQ:   opts.MinConfidence,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Detect uploads img as JPEG and returns the detections above the
// confidence threshold.
func (r *Remote) Detect(ctx context.Context, img image.Image) ([]Box, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}

	if err := imaging.Encode(part, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection failed with status: %d", resp.StatusCode)
	}

	var result remoteResponse

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	boxes := make([]Box, 0, len(result.Detections))

	for _, d := range result.Detections {
		if d.Confidence < r.minQ {
			continue
		}

		boxes = append(boxes, NewBox(d.X, d.Y, d.Width, d.Height))
	}

	return boxes, nil
}

// CheckHealth tests if the remote service answers on the /health route of
// its host.
func (r *Remote) CheckHealth(ctx context.Context) error {
	u, err := url.Parse(r.url)
	if err != nil {
		return fmt.Errorf("parse detector url: %w", err)
	}

	health := url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host, Path: "/health"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, health.String(), nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detector unhealthy: %d", resp.StatusCode)
	}

	return nil
}
