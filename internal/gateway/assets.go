package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultImage is shown when no artwork could be resolved
	DefaultImage = "https://i.imgur.com/hb3XPzA.png"

	proxyPrefix      = "mp:"
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxErrorBody     = 512

	// maxRememberedAssets bounds the registration memo; the oldest entry goes first
	maxRememberedAssets = 256
)

// AssetResolver exchanges external image URLs for provider proxy references
type AssetResolver struct {
	logger   *zap.Logger
	client   *http.Client
	endpoint string
	token    string

	mu    sync.Mutex
	seen  map[string]string
	order []string
	limit int
}

// NewAssetResolver creates a resolver registering images for the given application
func NewAssetResolver(logger *zap.Logger, client *http.Client, apiBase, appID, token string) *AssetResolver {
	return &AssetResolver{
		logger:   logger,
		client:   client,
		endpoint: fmt.Sprintf("%s/applications/%s/external-assets", strings.TrimRight(apiBase, "/"), appID),
		token:    token,
		seen:     make(map[string]string),
		limit:    maxRememberedAssets,
	}
}

// Resolve returns a proxy reference for ref. Empty refs resolve the default image.
// On failure the original URL is returned and may or may not render.
func (r *AssetResolver) Resolve(ctx context.Context, ref string) string {
	if ref == "" {
		ref = DefaultImage
	}
	if strings.HasPrefix(ref, proxyPrefix) {
		return ref
	}

	r.mu.Lock()
	cached, ok := r.seen[ref]
	r.mu.Unlock()
	if ok {
		return cached
	}

	proxied, err := r.register(ctx, ref)
	if err != nil {
		r.logger.Warn("External asset registration failed, sending raw url",
			zap.String("url", ref),
			zap.Error(err))
		return ref
	}

	r.remember(ref, proxied)
	return proxied
}

func (r *AssetResolver) remember(ref, proxied string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[ref]; ok {
		r.seen[ref] = proxied
		return
	}
	for len(r.order) >= r.limit {
		delete(r.seen, r.order[0])
		r.order = r.order[1:]
	}
	r.seen[ref] = proxied
	r.order = append(r.order, ref)
}

func (r *AssetResolver) register(ctx context.Context, imageURL string) (string, error) {
	body, err := json.Marshal(map[string][]string{"urls": {imageURL}})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", r.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, snippet)
	}

	var assets []struct {
		ExternalAssetPath string `json:"external_asset_path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&assets); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(assets) == 0 || assets[0].ExternalAssetPath == "" {
		return "", errors.New("empty external asset response")
	}

	return proxyPrefix + assets[0].ExternalAssetPath, nil
}
