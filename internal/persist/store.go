package persist

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/schema"
)

// DefaultFileName is the session collection file inside the state directory.
const DefaultFileName = "sessions.json"

// Store is the durable backing copy of the session collection. Load returns
// an empty collection when nothing was saved yet; Save replaces the whole
// value.
type Store interface {
	Load(ctx context.Context) ([]schema.Session, error)
	Save(ctx context.Context, sessions []schema.Session) error
}

// FileStore persists the session collection to a JSON file.
type FileStore struct {
	path string
	log  pslog.Logger
}

// NewFileStore constructs a file store at the given path.
func NewFileStore(path string) (*FileStore, error) {
	return NewFileStoreWithLogger(path, nil)
}

// NewFileStoreWithLogger constructs a file store with logging.
func NewFileStoreWithLogger(path string, logger pslog.Logger) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("store_path", path)
	}
	return &FileStore{path: path, log: logger}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the session collection from disk.
func (s *FileStore) Load(ctx context.Context) ([]schema.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("store load miss")
			}
			return []schema.Session{}, nil
		}
		if s.log != nil {
			s.log.Warn("store load failed", "err", err)
		}
		return nil, err
	}
	sessions, err := decodeSessions(data)
	if err != nil {
		if s.log != nil {
			s.log.Warn("store load failed", "err", err)
		}
		return nil, err
	}
	if s.log != nil {
		s.log.Debug("store load ok", "sessions", len(sessions))
	}
	return sessions, nil
}

// Save writes the session collection to disk atomically.
func (s *FileStore) Save(ctx context.Context, sessions []schema.Session) error {
	if err := s.save(sessions); err != nil {
		if s.log != nil {
			s.log.Warn("store save failed", "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Trace("store save ok", "sessions", len(sessions))
	}
	return nil
}

func (s *FileStore) save(sessions []schema.Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := encodeSessions(sessions, true)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "sessions-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func encodeSessions(sessions []schema.Session, indent bool) ([]byte, error) {
	if sessions == nil {
		sessions = []schema.Session{}
	}
	if indent {
		return json.MarshalIndent(sessions, "", "  ")
	}
	return json.Marshal(sessions)
}

func decodeSessions(data []byte) ([]schema.Session, error) {
	sessions := []schema.Session{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return sessions, nil
	}
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []schema.Session{}
	}
	return sessions, nil
}
