package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parlorlabs/arcade/internal/activity"
)

// SnapshotConfig configures a SnapshotStore.
type SnapshotConfig struct {
	Logger *slog.Logger
	Dir    string
}

func (c *SnapshotConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Dir == "" {
		return errors.New("snapshot dir is required")
	}
	return nil
}

// SnapshotStore wraps a MemoryStore with full-object JSON snapshots, one
// file per session, reloaded on cold start. Snapshot write failures are
// logged and swallowed; the in-memory state stays authoritative.
type SnapshotStore struct {
	*MemoryStore
	log *slog.Logger
	dir string
}

func NewSnapshotStore(cfg *SnapshotConfig) (*SnapshotStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	s := &SnapshotStore{
		MemoryStore: NewMemoryStore(),
		log:         cfg.Logger,
		dir:         cfg.Dir,
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SnapshotStore) reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("store: failed to read snapshot", "path", path, "error", err)
			continue
		}
		var sess activity.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			s.log.Warn("store: skipping corrupt snapshot", "path", path, "error", err)
			continue
		}
		s.MemoryStore.Save(&sess)
	}
	s.log.Info("store: reloaded snapshots", "dir", s.dir, "sessions", len(s.MemoryStore.sessions))
	return nil
}

func (s *SnapshotStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *SnapshotStore) Save(sess *activity.Session) {
	s.MemoryStore.Save(sess)

	data, err := json.Marshal(sess)
	if err != nil {
		s.log.Warn("store: failed to marshal snapshot", "sessionID", sess.ID, "error", err)
		return
	}
	tmp := s.path(sess.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Warn("store: failed to write snapshot", "sessionID", sess.ID, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path(sess.ID)); err != nil {
		s.log.Warn("store: failed to replace snapshot", "sessionID", sess.ID, "error", err)
	}
}

func (s *SnapshotStore) Delete(id string) {
	s.MemoryStore.Delete(id)
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("store: failed to remove snapshot", "sessionID", id, "error", err)
	}
}
