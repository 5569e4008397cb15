package storagesvc

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
)

var ErrNotFound = errors.New("file not found")

type File struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps files in memory; used in tests and when no object storage is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	bucket string
	files  map[string]File
}

var _ core.FileStore = (*MemoryStore)(nil)

func NewMemoryStore(conf *core.Config) *MemoryStore {
	return &MemoryStore{bucket: conf.Storage.Bucket, files: make(map[string]File)}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "reading %q", key)
	}
	s.mu.Lock()
	s.files[key] = File{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) URL(_ context.Context, key string, expiry time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.files[key]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	u := url.URL{Scheme: "memory", Host: s.bucket, Path: "/" + key}
	u.RawQuery = url.Values{"expires": {strconv.FormatInt(time.Now().Add(expiry).Unix(), 10)}}.Encode()
	return u.String(), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.files, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(key string) (File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[key]
	return f, ok
}
