// SPDX-License-Identifier: MIT
package codec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "soundhub/internal/log"
)

// Fetcher opens source locators: plain paths (relative to BaseDir),
// file:// URLs and http(s) URLs. Remote sources are spooled to a temporary
// file so decoders can seek without holding the body in memory.
type Fetcher struct {
	BaseDir string
	Client  *http.Client
}

// NewFetcher creates a Fetcher whose HTTP requests time out after timeout.
func NewFetcher(baseDir string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{BaseDir: baseDir, Client: &http.Client{Timeout: timeout}}
}

// Open implements Opener.
func (f *Fetcher) Open(ctx context.Context, src string) (io.ReadSeekCloser, error) {
	if src == "" {
		return nil, fmt.Errorf("open: empty source")
	}
	u, err := url.Parse(src)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.download(ctx, src)
		case "file":
			return os.Open(u.Path)
		}
	}
	p := src
	if !filepath.IsAbs(p) && f.BaseDir != "" {
		p = filepath.Join(f.BaseDir, p)
	}
	return os.Open(p)
}

func (f *Fetcher) download(ctx context.Context, src string) (io.ReadSeekCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", src, resp.Status)
	}

	tmp, err := os.CreateTemp("", "soundhub-*"+strings.ToLower(filepath.Ext(req.URL.Path)))
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(tmp, resp.Body)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	applog.Debugf("Fetcher: spooled %s (%d bytes) to %s", src, n, tmp.Name())
	return &spooled{File: tmp}, nil
}

// spooled removes its temporary file on Close.
type spooled struct {
	*os.File
}

func (s *spooled) Close() error {
	err := s.File.Close()
	if rmErr := os.Remove(s.Name()); rmErr != nil && err == nil && !os.IsNotExist(rmErr) {
		err = rmErr
	}
	return err
}
