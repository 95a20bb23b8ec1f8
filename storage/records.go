package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/minus-twelve/warden/types"
)

// RecordStore is the durable tier behind PersistentStore.
type RecordStore interface {
	Save(ctx context.Context, rec types.SessionRecord) error
	FindAll(ctx context.Context, filter types.RecordFilter) ([]types.SessionRecord, error)
	Remove(ctx context.Context, rec types.SessionRecord) error
	// Load pulls every stored record in from durable storage.
	Load(ctx context.Context) error
}

var ErrRecordNotFound = errors.New("session record not found")

const DefaultRecordFile = ".db_UserSession.json"

// FileRecordStore keeps records in memory and mirrors them to a JSON file
// on every write. An empty path keeps everything in memory.
type FileRecordStore struct {
	path    string
	records map[string]types.SessionRecord
	mutex   sync.RWMutex
}

func NewFileRecordStore(path string) *FileRecordStore {
	return &FileRecordStore{
		path:    path,
		records: make(map[string]types.SessionRecord),
	}
}

func (s *FileRecordStore) Path() string {
	return s.path
}

func (s *FileRecordStore) Load(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read session records: %w", err)
	}

	records := make(map[string]types.SessionRecord)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("decode session records: %w", err)
		}
	}

	s.mutex.Lock()
	s.records = records
	s.mutex.Unlock()
	return nil
}

func (s *FileRecordStore) Save(ctx context.Context, rec types.SessionRecord) error {
	if rec.SessionID == "" {
		return errors.New("session record without session id")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev, existed := s.records[rec.SessionID]
	s.records[rec.SessionID] = rec
	if err := s.flush(); err != nil {
		if existed {
			s.records[rec.SessionID] = prev
		} else {
			delete(s.records, rec.SessionID)
		}
		return err
	}
	return nil
}

func (s *FileRecordStore) FindAll(ctx context.Context, filter types.RecordFilter) ([]types.SessionRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if filter.SessionID != "" {
		rec, ok := s.records[filter.SessionID]
		if !ok || !filter.Match(rec) {
			return nil, nil
		}
		return []types.SessionRecord{rec}, nil
	}

	var found []types.SessionRecord
	for _, rec := range s.records {
		if filter.Match(rec) {
			found = append(found, rec)
		}
	}
	return found, nil
}

func (s *FileRecordStore) Remove(ctx context.Context, rec types.SessionRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev, ok := s.records[rec.SessionID]
	if !ok {
		return ErrRecordNotFound
	}
	delete(s.records, rec.SessionID)
	if err := s.flush(); err != nil {
		s.records[rec.SessionID] = prev
		return err
	}
	return nil
}

// flush must be called with the write lock held.
func (s *FileRecordStore) flush() error {
	if s.path == "" {
		return nil
	}

	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("encode session records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("write session records: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write session records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write session records: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write session records: %w", err)
	}
	return nil
}
