package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryProvider keeps blobs in process memory. It backs tests and local runs.
type MemoryProvider struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryObject

	// FailPut, when set, is consulted before every write.
	FailPut func(path string) error
}

type memoryObject struct {
	contentType string
	data        []byte
}

func NewMemory(baseURL string) *MemoryProvider {
	if baseURL == "" {
		baseURL = "memory://uploads"
	}
	return &MemoryProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]memoryObject),
	}
}

func (p *MemoryProvider) Put(ctx context.Context, path string, contentType string, body []byte) (Object, error) {
	path, err := cleanPath(path)
	if err != nil {
		return Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return Object{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if p.FailPut != nil {
		if err := p.FailPut(path); err != nil {
			return Object{}, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.objects[path]; ok {
		return Object{}, ErrObjectExists
	}
	data := make([]byte, len(body))
	copy(data, body)
	p.objects[path] = memoryObject{contentType: contentType, data: data}

	return Object{
		Path:        path,
		URL:         p.PublicURL(path),
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}

func (p *MemoryProvider) Get(ctx context.Context, path string) ([]byte, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	obj, ok := p.objects[path]
	if !ok {
		return nil, ErrObjectNotFound
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, nil
}

func (p *MemoryProvider) Delete(ctx context.Context, path string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, path)
	return nil
}

func (p *MemoryProvider) PublicURL(path string) string {
	return p.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Paths lists the stored object paths.
func (p *MemoryProvider) Paths() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.objects))
	for path := range p.objects {
		out = append(out, path)
	}
	return out
}
