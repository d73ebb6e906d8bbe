package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LocalPrefsStore keeps one JSON document per scope under basePath.
type LocalPrefsStore struct {
	basePath string

	mu sync.Mutex
}

func NewLocalPrefsStore(basePath string) (*LocalPrefsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create prefs directory: %w", err)
	}
	return &LocalPrefsStore{basePath: basePath}, nil
}

func (s *LocalPrefsStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(scope)
	if err != nil {
		return nil, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

func (s *LocalPrefsStore) Put(ctx context.Context, scope, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(scope)
	if err != nil {
		// A damaged document is replaced rather than blocking every later write.
		slog.Warn("discarding unreadable prefs document", "scope", scope, "error", err)
		doc = map[string]json.RawMessage{}
	}
	if !json.Valid(value) {
		// Values are stored inline in the scope document, so wrap non-JSON as a string.
		quoted, err := json.Marshal(string(value))
		if err != nil {
			return fmt.Errorf("failed to encode pref: %w", err)
		}
		value = quoted
	}
	doc[key] = json.RawMessage(value)
	return s.write(scope, doc)
}

func (s *LocalPrefsStore) Delete(ctx context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(scope)
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return s.write(scope, doc)
}

func (s *LocalPrefsStore) read(scope string) (map[string]json.RawMessage, error) {
	filePath, err := s.safeJoin(scope)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read prefs: %w", err)
	}

	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode prefs: %w", err)
	}
	return doc, nil
}

// write replaces the scope document through a temp file and rename so a crash
// never leaves a half-written document behind.
func (s *LocalPrefsStore) write(scope string, doc map[string]json.RawMessage) error {
	filePath, err := s.safeJoin(scope)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}

	f, err := os.CreateTemp(s.basePath, ".prefs-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close file after write error", "error", cerr)
		}
		if rerr := os.Remove(tmp); rerr != nil {
			slog.Error("failed to remove file after write error", "error", rerr)
		}
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(tmp); rerr != nil {
			slog.Error("failed to remove file after close error", "error", rerr)
		}
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		if rerr := os.Remove(tmp); rerr != nil {
			slog.Error("failed to remove file after rename error", "error", rerr)
		}
		return fmt.Errorf("failed to replace prefs: %w", err)
	}
	return nil
}

// safeJoin resolves the scope document relative to basePath and rejects directory traversal.
func (s *LocalPrefsStore) safeJoin(scope string) (string, error) {
	if scope == "" {
		return "", fmt.Errorf("empty prefs scope")
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, scope+".json"))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}
