package storage

import (
	"context"
	"os"
	"path/filepath"
)

// FileStore keeps artifacts under a local directory. Redirects are relative
// symlinks, so the directory can be served by any static file server.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: dir}, nil
}

// Root returns the storage directory.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) path(p string) (string, error) {
	c, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(c)), nil
}

func (s *FileStore) Put(ctx context.Context, p string, data []byte) error {
	dst, err := s.path(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if fi, err := os.Lstat(dst); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *FileStore) Get(ctx context.Context, p string) ([]byte, error) {
	src, err := s.path(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *FileStore) Exists(ctx context.Context, p string) (bool, error) {
	src, err := s.path(p)
	if err != nil {
		return false, err
	}
	_, err = os.Lstat(src)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) Redirect(ctx context.Context, from, to string) error {
	src, err := s.path(from)
	if err != nil {
		return err
	}
	dst, err := s.path(to)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		return err
	}
	rel, err := filepath.Rel(filepath.Dir(src), dst)
	if err != nil {
		return err
	}
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(rel, src)
}

var _ Store = (*FileStore)(nil)
