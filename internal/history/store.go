package history

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/vidpress/orchestrator/internal/db"
	"github.com/vidpress/orchestrator/internal/job"
	"github.com/vidpress/orchestrator/internal/settings"
)

const bucket = "history/"

// Store persists completed-job records in the durable local store. The
// list is append-ordered and unbounded; only an explicit clear trims
// it.
type Store struct {
	db *db.Store
}

func NewStore(dbStore *db.Store) *Store {
	return &Store{db: dbStore}
}

// Append writes one record. Keys embed the creation timestamp so badger
// iteration preserves append order.
func (s *Store) Append(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	key := fmt.Sprintf("%s/%s", r.CreatedAt.Format(time.RFC3339Nano), r.ID)
	if err := s.db.Set(bucket, key, data); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// List returns all records, most recent first.
func (s *Store) List() ([]Record, error) {
	var records []Record

	err := s.db.Scan(bucket, func(key string, value []byte) error {
		var r Record
		if err := json.Unmarshal(value, &r); err != nil {
			// Skip corrupt entries rather than poison the whole list.
			return nil
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Clear removes every record.
func (s *Store) Clear() error {
	return s.db.DropBucket(bucket)
}

// SettingsSource yields the current app settings. Satisfied by
// *settings.Store.
type SettingsSource interface {
	Load() (settings.Settings, error)
}

// AppendFunc builds the completed-job callback handed to the queue: it
// records the run unless auto-save is switched off. Writes are
// best-effort; a storage problem is logged and must never block the
// compression flow.
func AppendFunc(cfg SettingsSource, store *Store) func(j job.Job) {
	return func(j job.Job) {
		s, err := cfg.Load()
		if err == nil && !s.AutoSaveHistory {
			return
		}
		if err := store.Append(FromJob(j)); err != nil {
			log.Printf("Append history for job %s: %v", j.ID, err)
		}
	}
}
