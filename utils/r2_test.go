package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "snapshots/base-sepolia/0xabc/42.json", SnapshotKey("Base Sepolia", "0xABC", 42))
	assert.Equal(t, "snapshots/localhost/0xabc/0.json", SnapshotKey("localhost", "0xabc", 0))
	assert.Equal(t, "snapshots/unknown/0xabc/7.json", SnapshotKey("  ", "0xabc", 7))
}

func TestNewR2UploaderValidates(t *testing.T) {
	_, err := NewR2Uploader(context.Background(), R2Options{AccountID: "acct"})
	require.Error(t, err)

	_, err = NewR2Uploader(context.Background(), R2Options{Bucket: "snapshots"})
	require.Error(t, err)

	up, err := NewR2Uploader(context.Background(), R2Options{Bucket: "snapshots", Endpoint: "http://127.0.0.1:9000", AccessKeyID: "k", AccessKeySecret: "s"})
	require.NoError(t, err)
	assert.Equal(t, "snapshots", up.bucket)
}

func TestDirPutter(t *testing.T) {
	root := t.TempDir()
	d := DirPutter{Root: root}
	key := SnapshotKey("localhost", "0xabc", 3)

	require.NoError(t, d.PutObject(context.Background(), key, "application/json", []byte(`{"a":1}`)))
	require.NoError(t, d.PutObject(context.Background(), key, "application/json", []byte(`{"a":2}`)))

	got, err := os.ReadFile(filepath.Join(root, "snapshots", "localhost", "0xabc", "3.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))

	entries, err := os.ReadDir(filepath.Join(root, "snapshots", "localhost", "0xabc"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	assert.Error(t, d.PutObject(context.Background(), "../outside.json", "application/json", nil))
}
