package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/rmehra06/galleryctl/internal/config"
	"github.com/rmehra06/galleryctl/internal/models"
)

// Client talks to the project-image REST endpoints. Uploads get their own
// generous timeout; metadata calls (delete/reorder/feature) use a short one.
type Client struct {
	baseURL     string
	meta        *http.Client
	upload      *http.Client
	tokenExpiry time.Time
}

// Options controls optional parameters for NewClientWithOptions.
type Options struct {
	RequestTimeout time.Duration
	UploadTimeout  time.Duration

	// Transport overrides the base round tripper (mainly for tests).
	Transport http.RoundTripper
}

// NewOptions returns sensible defaults.
func NewOptions() Options {
	return Options{
		RequestTimeout: 15 * time.Second,
		UploadTimeout:  2 * time.Minute,
	}
}

// NewClient constructs a client for the given API base URL. The bearer token
// is attached to every request; pass "" for unauthenticated endpoints.
func NewClient(baseURL, token string) (*Client, error) {
	return NewClientWithOptions(baseURL, token, NewOptions())
}

func NewClientWithOptions(baseURL, token string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("empty base URL")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 2 * time.Minute
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	// Credential injection happens once here, not at call sites.
	rt := base
	if token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		}
	}
	rt = &loggingTransport{base: rt}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokenExpiry: credentialExpiry(token),
		meta:        &http.Client{Transport: rt, Timeout: opts.RequestTimeout},
		upload:      &http.Client{Transport: rt, Timeout: opts.UploadTimeout},
	}, nil
}

// NewFromConfig constructs a client from app config.
func NewFromConfig(cfg config.Config) (*Client, error) {
	opts := NewOptions()
	opts.RequestTimeout = cfg.RequestTimeout
	opts.UploadTimeout = cfg.UploadTimeout
	return NewClientWithOptions(cfg.APIBaseURL, cfg.APIToken, opts)
}

// FetchSet reads the parent project and returns its image list.
func (c *Client) FetchSet(ctx context.Context, projectID string) ([]models.ImageRef, error) {
	p, err := c.do(ctx, c.meta, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, "")
	if err != nil {
		return nil, err
	}

	if len(p.Data) == 0 {
		return nil, nil
	}
	var data struct {
		Project struct {
			ID     string            `json:"id"`
			Images []models.ImageRef `json:"images"`
		} `json:"project"`
	}
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	return data.Project.Images, nil
}

// UploadImages sends all files in a single multipart request and returns the
// server's authoritative image list.
func (c *Client) UploadImages(ctx context.Context, projectID string, files []models.FileUpload) ([]models.ImageRef, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Filename)
		if err != nil {
			return nil, fmt.Errorf("build multipart form: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart form: %w", err)
	}

	p, err := c.do(ctx, c.upload, http.MethodPost,
		"/projects/"+url.PathEscape(projectID)+"/images", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return decodeImages(p, true)
}

// DeleteImage removes one image. The returned list is nil when the server
// confirms without echoing the updated set.
func (c *Client) DeleteImage(ctx context.Context, projectID string, id models.Identity) ([]models.ImageRef, error) {
	p, err := c.do(ctx, c.meta, http.MethodDelete,
		"/projects/"+url.PathEscape(projectID)+"/images/"+url.PathEscape(id.String()), nil, "")
	if err != nil {
		return nil, err
	}
	return decodeImages(p, false)
}

// ReorderImages submits the full desired sequence and returns the server's
// authoritative order.
func (c *Client) ReorderImages(ctx context.Context, projectID string, order []models.Identity) ([]models.ImageRef, error) {
	wire := make([]any, len(order))
	for i, id := range order {
		wire[i] = wireIdentity(id)
	}
	body, err := json.Marshal(map[string]any{"order": wire})
	if err != nil {
		return nil, err
	}

	p, err := c.do(ctx, c.meta, http.MethodPut,
		"/projects/"+url.PathEscape(projectID)+"/images/reorder", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	return decodeImages(p, true)
}

// SetFeaturedImage marks one image as the project's featured image.
func (c *Client) SetFeaturedImage(ctx context.Context, projectID string, id models.Identity) ([]models.ImageRef, error) {
	body, err := json.Marshal(map[string]any{"identity": wireIdentity(id)})
	if err != nil {
		return nil, err
	}

	p, err := c.do(ctx, c.meta, http.MethodPut,
		"/projects/"+url.PathEscape(projectID)+"/featured-image", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	return decodeImages(p, false)
}

// ExtractImages triggers server-side extraction from the project's document.
// Long-running on the server; the response carries a status message and,
// when extraction completed inline, the updated image list.
func (c *Client) ExtractImages(ctx context.Context, projectID string) (string, []models.ImageRef, error) {
	p, err := c.do(ctx, c.upload, http.MethodPost,
		"/projects/"+url.PathEscape(projectID)+"/extract-images", nil, "")
	if err != nil {
		return "", nil, err
	}
	images, err := decodeImages(p, false)
	if err != nil {
		return "", nil, err
	}
	return p.Message, images, nil
}

// wireIdentity maps the identity union onto the wire: positional backends
// get a number, id and path backends a string.
func wireIdentity(id models.Identity) any {
	if id.Kind == models.IdentityIndex {
		return id.Index
	}
	return id.String()
}

func decodeImages(p *Payload, required bool) ([]models.ImageRef, error) {
	if len(p.Data) == 0 {
		if required {
			return nil, errors.New("response missing image list")
		}
		return nil, nil
	}

	var data struct {
		Images []models.ImageRef `json:"images"`
	}
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if data.Images == nil && required {
		return nil, errors.New("response missing image list")
	}
	return data.Images, nil
}

func (c *Client) do(ctx context.Context, cli *http.Client, method, path string, body io.Reader, contentType string) (*Payload, error) {
	if !c.tokenExpiry.IsZero() && time.Now().After(c.tokenExpiry) {
		return nil, ErrCredentialExpired
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var p Payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !p.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: p.ErrorMessage("request failed")}
	}
	return &p, nil
}
