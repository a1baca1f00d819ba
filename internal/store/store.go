// Package store persists the ledger collections. Each collection is written
// as one serialized JSON blob under a fixed key.
package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
)

// Collection keys. Every key holds one JSON document.
const (
	KeyTransactions = "transactions"
	KeyAccounts     = "accounts"
	KeyTemplates    = "templates"
	KeyPurposes     = "purposes"
	KeyIncomes      = "incomes"
	KeyNotes        = "notes"
)

// Keys lists every collection key in load order.
var Keys = []string{KeyAccounts, KeyTransactions, KeyPurposes, KeyTemplates, KeyIncomes, KeyNotes}

// ErrNotFound is returned by Get when nothing was stored under the key yet.
var ErrNotFound = errors.New("store: key not found")

// Backend reads and writes whole collection blobs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Memory is an in-process Backend. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns a copy of the blob stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

// Put stores a copy of data under key.
func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), data...)
	return nil
}

// File stores each collection as <dir>/<key>.json.
type File struct {
	dir string
}

// NewFile creates the directory if needed and returns a file backend rooted at it.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "NewFile: create dir %q", dir)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Get reads the blob for key.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "File.Get: read %q", key)
	}
	return b, nil
}

// Put writes the blob to a temp file and renames it over the old one, so a
// reader never sees a half-written collection.
func (f *File) Put(_ context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, key+"-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "File.Put: create temp for %q", key)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "File.Put: write %q", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "File.Put: close %q", key)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return errors.Wrapf(err, "File.Put: rename %q", key)
	}
	return nil
}

// Copy writes every collection present in src to dst and returns how many
// were copied. Collections missing from src are left untouched in dst.
func Copy(ctx context.Context, dst, src Backend) (int, error) {
	copied := 0
	for _, key := range Keys {
		data, err := src.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return copied, errors.Wrapf(err, "Copy: read %q", key)
		}
		if err := dst.Put(ctx, key, data); err != nil {
			return copied, errors.Wrapf(err, "Copy: write %q", key)
		}
		copied++
	}
	return copied, nil
}

// Ensure implementations satisfy Backend.
var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*File)(nil)
)
