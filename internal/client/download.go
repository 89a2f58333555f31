package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// Download is a binary response such as an invoice PDF or a lead export.
// The caller must Close it or call SaveTo.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Checksum    string // hex SHA-256 when the server sends one
	Body        io.ReadCloser
}

// Close releases the response body
func (d *Download) Close() error {
	return d.Body.Close()
}

// SaveTo writes the body to dir/Filename, closes the body and returns the
// written path.
func (d *Download) SaveTo(dir string) (string, error) {
	defer d.Body.Close()

	name := filepath.Base(d.Filename)
	switch name {
	case "", ".", "..", string(filepath.Separator):
		name = "download"
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, d.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func (c *Client) download(ctx context.Context, op, path string, query url.Values, fallbackName string) (*Download, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.send(op, req)
	if err != nil {
		return nil, err
	}

	d := &Download{
		Filename:    fallbackName,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Checksum:    resp.Header.Get("X-Checksum-SHA256"),
		Body:        resp.Body,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		d.Filename = params["filename"]
	}
	if d.Size < 0 {
		if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
			d.Size = n
		}
	}
	return d, nil
}
