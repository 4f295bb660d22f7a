package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/newsbridge/internal/logger"
)

// FileStore keeps the ledger in a JSON or YAML file, rewritten in full after
// every new entry.
type FileStore struct {
	path string
	sink PersistenceSink

	mu   sync.Mutex
	urls map[string]struct{}
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithSink runs sink after every successful rewrite.
func WithSink(sink PersistenceSink) FileOption {
	return func(s *FileStore) { s.sink = sink }
}

// OpenFile loads the ledger at path. A missing file is an empty ledger.
func OpenFile(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{path: path, urls: make(map[string]struct{})}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	urls, err := decodeEntries(data, isYAML(path))
	if err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			s.urls[u] = struct{}{}
		}
	}
	logger.Debug("ledger loaded", "path", path, "entries", len(s.urls))
	return s, nil
}

// decodeEntries accepts a list of URLs or an object keyed by URL.
func decodeEntries(data []byte, asYAML bool) ([]string, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	unmarshal := json.Unmarshal
	if asYAML {
		unmarshal = yaml.Unmarshal
	}

	var list []string
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var obj map[string]any
	if err := unmarshal(data, &obj); err != nil {
		return nil, errors.New("expected a list of URLs or an object keyed by URL")
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	return keys, nil
}

// Has reports whether url was recorded.
func (s *FileStore) Has(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[url]
	return ok, nil
}

// Record adds url and rewrites the file. Recording a known URL is a no-op.
func (s *FileStore) Record(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[url]; ok {
		return nil
	}
	s.urls[url] = struct{}{}
	if err := s.save(); err != nil {
		delete(s.urls, url)
		return err
	}

	if s.sink != nil {
		if err := s.sink.Persist(ctx, s.path); err != nil {
			logger.Warn("ledger sink failed", "path", s.path, "error", err)
		}
	}
	return nil
}

// List returns the recorded URLs, sorted.
func (s *FileStore) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(), nil
}

// Close is a no-op; every Record is already on disk.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) sorted() []string {
	out := make([]string, 0, len(s.urls))
	for u := range s.urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// save writes the ledger to a temp file next to the target and renames it
// into place.
func (s *FileStore) save() error {
	var (
		data []byte
		err  error
	)
	if isYAML(s.path) {
		data, err = yaml.Marshal(s.sorted())
	} else {
		data, err = json.MarshalIndent(s.sorted(), "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
