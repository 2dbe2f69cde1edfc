package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Name      string         `json:"name"`
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}

// objectPath is unescaped; the request URL encodes it
func objectPath(bucket, path string) string {
	return "/storage/v1/object/" + bucket + "/" + strings.Trim(path, "/")
}

// Upload stores the bytes read from r at bucket/path. Existing objects are not
// overwritten.
func (c *Client) Upload(ctx context.Context, bucket, path, contentType string, r io.Reader) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   objectPath(bucket, path),
		raw:    r,
		headers: map[string]string{
			"Content-Type":  contentType,
			"Cache-Control": "max-age=3600",
			"x-upsert":      "false",
		},
	}, nil)
}

// Download returns the object stored at bucket/path
func (c *Client) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	data, _, err := c.send(ctx, request{method: http.MethodGet, path: objectPath(bucket, path)})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// List returns the objects in bucket under prefix
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/storage/v1/object/list/" + bucket,
		body:   map[string]any{"prefix": prefix, "limit": 100, "offset": 0},
	}, &out)
	return out, err
}

// Remove deletes the objects at paths in bucket
func (c *Client) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/storage/v1/object/" + bucket,
		body:   map[string]any{"prefixes": paths},
	}, nil)
}

// PublicURL returns the URL of an object in a public bucket
func (c *Client) PublicURL(bucket, path string) string {
	u := *c.base
	u.Path = c.base.Path + strings.Replace(objectPath(bucket, path), "/object/", "/object/public/", 1)
	return u.String()
}
