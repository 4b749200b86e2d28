package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Local writes objects into a directory served by the webhook server at
// /static/.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates the directory if needed. baseURL is the public origin
// of this process, e.g. https://bot.example.com.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating static dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir is the directory objects are written to.
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}

	// Write to a temp file then rename so a half-written image is never served.
	path := filepath.Join(l.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing object: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("renaming object: %w", err)
	}
	return l.baseURL + "/static/" + url.PathEscape(name), nil
}
