package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "evlist/internal/log"
)

// Source identifies one calendar source.
type Source struct {
	// ID is an internal identifier (e.g. config source ID).
	ID string
	// Name is a human-friendly label.
	Name string
	// Location is a filesystem path or an http(s) URL. Empty means the
	// Inline bytes are the payload.
	Location string
	// Inline carries the ICS payload directly (bundled sample calendar).
	Inline []byte
}

// LoadResult contains the outcome of loading a single source.
type LoadResult struct {
	Source    Source
	Body      []byte
	FromCache bool // true if a cached body was reused (304 or network failure)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Loader reads calendar payloads. Files and inline payloads are read
// directly; URL sources are fetched with ETag / Last-Modified
// conditional requests backed by a disk cache.
type Loader struct {
	client   *http.Client
	cacheDir string
}

// NewLoader creates a Loader. cacheDir is the base directory for the
// per-URL cache; empty means a directory under the user cache dir.
func NewLoader(cacheDir string) *Loader {
	if cacheDir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			cacheDir = filepath.Join(base, "evlist", "ics-cache")
		} else {
			cacheDir = "./var/ics-cache"
		}
	}
	return &Loader{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// Load returns the ICS payload for a source.
func (l *Loader) Load(ctx context.Context, src Source) (LoadResult, error) {
	if src.Location == "" {
		if len(src.Inline) == 0 {
			return LoadResult{}, errors.New("source has neither location nor inline payload")
		}
		return LoadResult{Source: src, Body: src.Inline}, nil
	}

	if isURL(src.Location) {
		return l.fetchURL(ctx, src)
	}

	body, err := os.ReadFile(src.Location)
	if err != nil {
		return LoadResult{}, err
	}
	appLog.Debug("ics file read", "id", src.ID, "path", src.Location, "bytes", len(body))
	return LoadResult{Source: src, Body: body}, nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// fetchURL fetches an ICS URL honoring ETag and Last-Modified, using a
// disk cache keyed by a hash of the URL. On network failure or a non-OK
// status the cached body, if any, is returned instead.
func (l *Loader) fetchURL(ctx context.Context, src Source) (LoadResult, error) {
	cachePath, err := l.cachePathForURL(src.Location)
	if err != nil {
		return LoadResult{}, err
	}
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return LoadResult{}, err
	}

	meta, _ := l.loadCacheMeta(cachePath)
	cachedBody, _ := l.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Location, nil)
	if err != nil {
		return LoadResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.Location))

	resp, err := l.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("ics fetch failed, using cached body", err, "id", src.ID, "url", redactURL(src.Location))
			return LoadResult{Source: src, Body: cachedBody, FromCache: true}, nil
		}
		return LoadResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return LoadResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          src.Location,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := l.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.Location))
		}

		appLog.Debug("ics fetch success", "id", src.ID, "url", redactURL(src.Location), "bytes", len(body))
		return LoadResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return LoadResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ics fetch not modified; using cache", "id", src.ID, "url", redactURL(src.Location))
		return LoadResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("ics fetch non-OK, using cached body", errors.New(resp.Status), "id", src.ID, "url", redactURL(src.Location), "status", resp.StatusCode)
			return LoadResult{Source: src, Body: cachedBody, FromCache: true}, nil
		}
		return LoadResult{}, errors.New(resp.Status)
	}
}

func (l *Loader) cachePathForURL(url string) (string, error) {
	if url == "" {
		return "", errors.New("empty url")
	}
	sum := sha256.Sum256([]byte(url))
	dir := hex.EncodeToString(sum[:8])
	return filepath.Join(l.cacheDir, dir), nil
}

func (l *Loader) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (l *Loader) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (l *Loader) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides path and query of a calendar URL for logging; feed
// URLs commonly embed access tokens.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	j := strings.IndexByte(rest, '/')
	if j == -1 {
		return u + redactedSuffix
	}
	return u[:i+3+j] + redactedSuffix
}
