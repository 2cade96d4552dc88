package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vidpress/orchestrator/internal/db"
)

const (
	bucket = "settings/"
	key    = "app"
)

// Custom holds the manual encoding knobs used when no named preset is
// selected.
type Custom struct {
	Quality         int    `json:"quality"`
	SpeedPreset     string `json:"speed_preset"`
	Scale           int    `json:"scale"`
	PreserveQuality bool   `json:"preserve_quality"`
}

// Settings is the single persisted app-settings record.
type Settings struct {
	DefaultPreset   string `json:"default_preset"`
	Custom          Custom `json:"custom_settings"`
	Theme           string `json:"theme"`
	AutoSaveHistory bool   `json:"auto_save_history"`
}

// Defaults are used on first launch or when the record is missing.
func Defaults() Settings {
	return Settings{
		DefaultPreset: "balanced",
		Custom: Custom{
			Quality:         23,
			SpeedPreset:     "medium",
			Scale:           100,
			PreserveQuality: false,
		},
		Theme:           "system",
		AutoSaveHistory: true,
	}
}

// Store persists the settings record under a fixed key.
type Store struct {
	db *db.Store
}

func NewStore(dbStore *db.Store) *Store {
	return &Store{db: dbStore}
}

// Load reads persisted settings, falling back to defaults when the
// record is absent.
func (s *Store) Load() (Settings, error) {
	data, err := s.db.Get(bucket, key)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	var cfg Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return cfg, nil
}

func (s *Store) Save(cfg Settings) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.db.Set(bucket, key, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
