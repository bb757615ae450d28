// Package upload pushes regenerated feed files to the static host serving
// them. Uploads are idempotent: every invocation pushes the full current
// set of files.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Uploader PUTs files to an HTTP endpoint (WebDAV-style static hosting).
type Uploader struct {
	endpoint string
	username string
	password string
	client   *http.Client
	logger   *slog.Logger
}

func New(endpoint, username, password string, logger *slog.Logger) *Uploader {
	return &Uploader{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// UploadDir uploads every regular file in dir, flat, skipping temp files.
func (u *Uploader) UploadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read feed dir: %w", err)
	}

	var uploaded int
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		if err := u.uploadFile(ctx, filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			return fmt.Errorf("upload %s: %w", entry.Name(), err)
		}
		uploaded++
	}

	u.logger.Info("feed files uploaded", "count", uploaded, "endpoint", u.endpoint)
	return nil
}

func (u *Uploader) uploadFile(ctx context.Context, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.endpoint+"/"+name, f)
	if err != nil {
		return err
	}
	if u.username != "" {
		req.SetBasicAuth(u.username, u.password)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
