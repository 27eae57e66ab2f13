package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
	Timeout        time.Duration
}

// SupabaseProvider talks to the Supabase Storage REST API.
type SupabaseProvider struct {
	cfg    SupabaseConfig
	client *http.Client
	log    *zap.Logger
}

func NewSupabase(cfg SupabaseConfig, client *http.Client, log *zap.Logger) (*SupabaseProvider, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		return nil, errors.New("supabase url is required")
	}
	if strings.TrimSpace(cfg.ServiceRoleKey) == "" {
		return nil, errors.New("supabase service role key is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		cfg.Bucket = "uploads"
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SupabaseProvider{cfg: cfg, client: client, log: log.Named("storage.supabase")}, nil
}

func (p *SupabaseProvider) Put(ctx context.Context, path string, contentType string, body []byte) (Object, error) {
	path, err := cleanPath(path)
	if err != nil {
		return Object{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.objectURL(path), bytes.NewReader(body))
	if err != nil {
		return Object{}, err
	}
	p.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	req.Header.Set("x-upsert", "false")

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("storage put failed", zap.String("path", path), zap.Error(err))
		return Object{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := p.checkResponse(resp); err != nil {
		p.log.Warn("storage put rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return Object{}, err
	}

	return Object{
		Path:        path,
		URL:         p.PublicURL(path),
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}

func (p *SupabaseProvider) Get(ctx context.Context, path string) ([]byte, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.objectURL(path), nil)
	if err != nil {
		return nil, err
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := p.checkResponse(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Delete removes the object. Removing a missing object succeeds.
func (p *SupabaseProvider) Delete(ctx context.Context, path string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string][]string{"prefixes": {path}})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s", p.cfg.URL, url.PathEscape(p.cfg.Bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	p.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := p.checkResponse(resp); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	return nil
}

func (p *SupabaseProvider) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", p.cfg.URL, url.PathEscape(p.cfg.Bucket), escapePath(strings.TrimLeft(path, "/")))
}

func (p *SupabaseProvider) objectURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", p.cfg.URL, url.PathEscape(p.cfg.Bucket), escapePath(path))
}

func (p *SupabaseProvider) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.ServiceRoleKey)
	req.Header.Set("apikey", p.cfg.ServiceRoleKey)
}

type supabaseError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// checkResponse classifies a non-2xx answer. Supabase reports some
// conflicts as 400 with statusCode "409" in the body.
func (p *SupabaseProvider) checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body supabaseError
	_ = json.Unmarshal(raw, &body)

	switch {
	case resp.StatusCode == http.StatusConflict || body.StatusCode == "409" || strings.EqualFold(body.Error, "Duplicate"):
		return ErrObjectExists
	case resp.StatusCode == http.StatusNotFound || body.StatusCode == "404" || strings.EqualFold(body.Error, "not_found"):
		return ErrObjectNotFound
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("storage request rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(body.Message))
	}
}

func cleanPath(path string) (string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" || strings.Contains(path, "..") {
		return "", ErrInvalidPath
	}
	return path, nil
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
