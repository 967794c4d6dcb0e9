package artwork

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/genricoloni/navicord/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultLitterboxEndpoint = "https://litterbox.catbox.moe/resources/internals/api.php"

	// LitterboxRetention is how long litterbox keeps an upload
	LitterboxRetention = 72 * time.Hour
	litterboxTimeField = "72h"

	maxUploadResponse = 2048
)

// CoverSource builds a download URL for an album's cover
type CoverSource interface {
	CoverArtURL(albumID string) string
}

// UploadProvider re-hosts the music server's own cover art on a public image
// host, for servers that are not reachable from the internet.
type UploadProvider struct {
	logger    *zap.Logger
	source    CoverSource
	fetcher   domain.Fetcher
	processor domain.ImageProcessor
	hosts     []domain.ImageHost
}

var _ domain.ArtworkProvider = (*UploadProvider)(nil)

// NewUploadProvider tries hosts in order until one accepts the cover
func NewUploadProvider(
	logger *zap.Logger,
	source CoverSource,
	fetch domain.Fetcher,
	proc domain.ImageProcessor,
	hosts ...domain.ImageHost,
) *UploadProvider {
	return &UploadProvider{
		logger:    logger,
		source:    source,
		fetcher:   fetch,
		processor: proc,
		hosts:     hosts,
	}
}

func (u *UploadProvider) Name() string { return "upload" }

// TTL is the shortest retention among hosts that expire uploads
func (u *UploadProvider) TTL() time.Duration {
	var ttl time.Duration
	for _, host := range u.hosts {
		r, ok := host.(interface{ Retention() time.Duration })
		if !ok {
			continue
		}
		if ttl == 0 || r.Retention() < ttl {
			ttl = r.Retention()
		}
	}
	return ttl
}

// Lookup downloads, normalizes and uploads the album cover
func (u *UploadProvider) Lookup(ctx context.Context, track domain.Track) (string, error) {
	if track.AlbumID == "" || len(u.hosts) == 0 {
		return "", nil
	}

	raw, err := u.fetcher.Fetch(ctx, u.source.CoverArtURL(track.AlbumID))
	if err != nil {
		return "", fmt.Errorf("fetch cover: %w", err)
	}

	cover, err := u.processor.Process(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("process cover: %w", err)
	}

	var lastErr error
	for _, host := range u.hosts {
		imageURL, err := host.Upload(ctx, track.AlbumID+".jpg", cover)
		if err != nil {
			u.logger.Warn("Cover upload failed",
				zap.String("host", host.Name()),
				zap.Error(err))
			lastErr = err
			continue
		}
		u.logger.Info("Cover uploaded",
			zap.String("host", host.Name()),
			zap.String("url", imageURL))
		return imageURL, nil
	}

	return "", fmt.Errorf("all image hosts failed: %w", lastErr)
}

// Litterbox uploads to litterbox.catbox.moe, a temporary anonymous host
type Litterbox struct {
	client   *http.Client
	endpoint string
}

var (
	_ domain.ImageHost = (*Litterbox)(nil)
	_ Expiring         = (*UploadProvider)(nil)
)

// NewLitterbox creates a host client; an empty endpoint uses the public service
func NewLitterbox(endpoint string) *Litterbox {
	if endpoint == "" {
		endpoint = DefaultLitterboxEndpoint
	}
	return &Litterbox{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: endpoint,
	}
}

func (l *Litterbox) Name() string { return "litterbox" }

// Retention is how long uploads stay reachable
func (l *Litterbox) Retention() time.Duration { return LitterboxRetention }

// Upload posts the image as multipart form data; the reply body is the URL
func (l *Litterbox) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)

	if err := form.WriteField("reqtype", "fileupload"); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if err := form.WriteField("time", litterboxTimeField); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	part, err := form.CreateFormFile("fileToUpload", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadResponse))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	imageURL := strings.TrimSpace(string(reply))
	if !strings.HasPrefix(imageURL, "https://") {
		return "", fmt.Errorf("unexpected upload response: %q", imageURL)
	}
	return imageURL, nil
}
