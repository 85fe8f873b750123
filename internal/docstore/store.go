// Package docstore keeps rendered invoice documents on local disk and hands
// back the URL they are served under.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/fx"

	"github.com/ridgelinehq/roofcrm/internal/config"
)

var Module = fx.Module("docstore",
	fx.Provide(NewStore),
)

type Store interface {
	// Save writes the document under name and returns its public URL.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Open returns the stored document for serving.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

type fileStore struct {
	dir     string
	baseURL string
}

func NewStore(cfg config.Config) (Store, error) {
	dir := cfg.DocumentDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &fileStore{
		dir:     dir,
		baseURL: strings.TrimRight(cfg.DocumentBaseURL, "/"),
	}, nil
}

func (s *fileStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if r == nil {
		return "", errors.New("document body is nil")
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}

	return s.baseURL + "/" + name, nil
}

func (s *fileStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.dir, name))
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid document name %q", name)
	}
	return nil
}
