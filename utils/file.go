package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirPutter is an ObjectPutter that writes objects below a local directory.
type DirPutter struct {
	Root string
}

// PutObject writes body to Root/key, creating parent directories. The write goes through a
// temp file and a rename so readers never see a partial object.
func (d DirPutter) PutObject(_ context.Context, key, _ string, body []byte) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// path resolves key inside Root and refuses keys that escape it.
func (d DirPutter) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes %s", key, d.Root)
	}
	return filepath.Join(d.Root, clean), nil
}
