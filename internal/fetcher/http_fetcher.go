package fetcher

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	_maxImageSize = 10 * 1024 * 1024 // 10 MB
	_userAgent    = "navicord/1.0"
	_maxErrorBody = 4096
)

// subsonicError is the error element of a failed Subsonic reply, in either format
type subsonicError struct {
	Code    int    `json:"code" xml:"code,attr"`
	Message string `json:"message" xml:"message,attr"`
}

// HTTPFetcher downloads cover art over HTTP/HTTPS
type HTTPFetcher struct {
	logger *zap.Logger
	client *http.Client
}

// NewHTTPFetcher creates a new HTTP-based fetcher instance
func NewHTTPFetcher(logger *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Fetch downloads image data from the given URL.
// Responses larger than 10 MB are truncated.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("unsupported protocol: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", _userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Subsonic servers answer errors with 200 and an XML/JSON body.
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, _maxErrorBody))
		if e, ok := parseSubsonicError(body); ok {
			return nil, fmt.Errorf("url is not an image: %s: server error %d: %s", ct, e.Code, e.Message)
		}
		return nil, fmt.Errorf("url is not an image: %s", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	f.logger.Debug("Cover fetched", zap.Int("bytes", len(data)))
	return data, nil
}

func parseSubsonicError(body []byte) (subsonicError, bool) {
	var js struct {
		Response struct {
			Error *subsonicError `json:"error"`
		} `json:"subsonic-response"`
	}
	if json.Unmarshal(body, &js) == nil && js.Response.Error != nil {
		return *js.Response.Error, true
	}

	var x struct {
		XMLName xml.Name       `xml:"subsonic-response"`
		Error   *subsonicError `xml:"error"`
	}
	if xml.Unmarshal(body, &x) == nil && x.Error != nil {
		return *x.Error, true
	}
	return subsonicError{}, false
}
