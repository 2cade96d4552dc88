package history

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidpress/orchestrator/internal/job"
)

// Record is an immutable snapshot written once a job completes.
type Record struct {
	ID               string             `json:"id"`
	FileName         string             `json:"file_name"`
	OriginalSize     int64              `json:"original_size"`
	CompressedSize   int64              `json:"compressed_size"`
	CompressionRatio float64            `json:"compression_ratio"`
	Preset           string             `json:"preset"`
	Date             string             `json:"date"`
	Time             string             `json:"time"`
	DurationSec      float64            `json:"duration_seconds"`
	Status           string             `json:"status"`
	FileType         string             `json:"file_type"`
	Settings         job.EncodeSettings `json:"settings"`
	CreatedAt        time.Time          `json:"created_at"`
}

// FromJob snapshots a completed job.
func FromJob(j job.Job) Record {
	now := time.Now().UTC()

	var duration float64
	if j.StartTime != nil && j.EndTime != nil {
		duration = j.EndTime.Sub(*j.StartTime).Seconds()
	}

	return Record{
		ID:               uuid.NewString(),
		FileName:         j.FileName,
		OriginalSize:     j.OriginalSize,
		CompressedSize:   j.OutputSize,
		CompressionRatio: j.Ratio,
		Preset:           j.Preset,
		Date:             now.Format("2006-01-02"),
		Time:             now.Format("15:04:05"),
		DurationSec:      duration,
		Status:           string(j.Status),
		FileType:         strings.TrimPrefix(filepath.Ext(j.FileName), "."),
		Settings:         j.Settings,
		CreatedAt:        now,
	}
}
