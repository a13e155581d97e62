package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

// MemoryStore backs the dev server and tests. Signed URLs point at
// BaseURL and carry the method and expiry as query parameters.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
	now     func() time.Time
}

type memoryObject struct {
	body        []byte
	contentType string
}

var _ usecase.BlobStore = (*MemoryStore)(nil)

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://blobs"
	}
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, crerr.Wrapf(ErrNotFound, "get %s", key)
	}
	return append([]byte(nil), obj.body...), nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = memoryObject{body: append([]byte(nil), body...), contentType: contentType}
	return nil
}

func (m *MemoryStore) SignedReadURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return m.sign("GET", key, ttl), nil
}

func (m *MemoryStore) SignedWriteURL(_ context.Context, key, _ string, ttl time.Duration) (string, error) {
	return m.sign("PUT", key, ttl), nil
}

// Keys lists stored keys under prefix in order.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStore) sign(method, key string, ttl time.Duration) string {
	q := url.Values{}
	q.Set("method", method)
	q.Set("expires", fmt.Sprintf("%d", m.now().Add(ttl).Unix()))
	return m.baseURL + "/" + strings.TrimLeft(key, "/") + "?" + q.Encode()
}
