package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirCamera replays the images in a directory, one per Latest call, looping
// at the end. It stands in for a device camera in development and tests.
type DirCamera struct {
	dir string

	mu    sync.Mutex
	files []string
	next  int
}

func NewDirCamera(dir string) *DirCamera {
	return &DirCamera{dir: dir}
}

func (c *DirCamera) Open(ctx context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read camera dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(c.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no images in %s", c.dir)
	}
	sort.Strings(files)

	c.mu.Lock()
	c.files = files
	c.next = 0
	c.mu.Unlock()
	return nil
}

func (c *DirCamera) Latest(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	if len(c.files) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("camera is not open")
	}
	path := c.files[c.next]
	c.next = (c.next + 1) % len(c.files)
	c.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (c *DirCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = nil
	return nil
}

// HTTPCamera reads stills from a snapshot URL, as exposed by most IP cameras.
type HTTPCamera struct {
	url    string
	client *http.Client
}

func NewHTTPCamera(url string, client *http.Client) *HTTPCamera {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCamera{url: url, client: client}
}

// Open checks that the snapshot URL answers with an image.
func (c *HTTPCamera) Open(ctx context.Context) error {
	_, err := c.Latest(ctx)
	return err
}

func (c *HTTPCamera) Latest(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("snapshot returned status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return img, nil
}

func (c *HTTPCamera) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
