package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes objects below a root directory. Used in demo mode, where the
// HTTP server exposes the directory under /files/.
type LocalStorage struct {
	root    string
	baseURL string
}

func NewLocalStorage(root, publicBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *LocalStorage) Root() string { return s.root }

func (s *LocalStorage) Upload(_ context.Context, path, _ string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func (s *LocalStorage) PublicURL(path string) string {
	return s.baseURL + "/files/" + strings.TrimLeft(filepath.ToSlash(path), "/")
}

// resolve rejects paths that would escape the root.
func (s *LocalStorage) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.root, clean)
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	fullAbs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if fullAbs != rootAbs && !strings.HasPrefix(fullAbs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return full, nil
}
