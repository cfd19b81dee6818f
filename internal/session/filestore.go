package session

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

type fileEntry struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
}

// FileStore persists session state to a JSON file so replay runs of the
// same trace share a session, the way page views in one browser share a
// cookie jar. A file lock guards against concurrent harness processes.
type FileStore struct {
	path string
	lock *flock.Flock
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
}

func (s *FileStore) Get(key string) (string, bool) {
	if err := s.lock.Lock(); err != nil {
		return "", false
	}
	defer func() { _ = s.lock.Unlock() }()

	entries, err := s.read()
	if err != nil {
		return "", false
	}
	e, ok := entries[key]
	if !ok || s.now().After(e.Expires) {
		return "", false
	}
	return e.Value, true
}

func (s *FileStore) Set(key, value string, ttl time.Duration) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock session store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	entries, err := s.read()
	if err != nil {
		entries = map[string]fileEntry{}
	}
	entries[key] = fileEntry{Value: value, Expires: s.now().Add(ttl)}
	return s.write(entries)
}

func (s *FileStore) read() (map[string]fileEntry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]fileEntry{}, nil
		}
		return nil, err
	}
	entries := map[string]fileEntry{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) write(entries map[string]fileEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
