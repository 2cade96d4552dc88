package job

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusAnalyzing  Status = "analyzing"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

type Kind string

const (
	KindCompress Kind = "compress"
	KindRepair   Kind = "repair"
)

// EncodeSettings are the encoding parameters for a compression job.
// Immutable once the job starts.
type EncodeSettings struct {
	Quality      int    `json:"quality"`
	SpeedPreset  string `json:"speed_preset"`
	ScalePercent int    `json:"scale_percent"`
	OutputFormat string `json:"output_format"`
}

// RepairSettings select the repair strategy for a repair job.
type RepairSettings struct {
	RepairKind string `json:"repair_kind"`
}

type Job struct {
	ID           string          `json:"id"`
	Kind         Kind            `json:"kind"`
	FileName     string          `json:"file_name"`
	SourcePath   string          `json:"source_path"`
	Status       Status          `json:"status"`
	Progress     float64         `json:"progress"`
	OriginalSize int64           `json:"original_size"`
	OutputSize   int64           `json:"output_size,omitempty"`
	OutputPath   string          `json:"output_path,omitempty"`
	Ratio        float64         `json:"ratio,omitempty"`
	Error        string          `json:"error,omitempty"`
	Preset       string          `json:"preset,omitempty"`
	Settings     EncodeSettings  `json:"settings"`
	Repair       *RepairSettings `json:"repair,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartTime    *time.Time      `json:"start_time,omitempty"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
}

func New(kind Kind, fileName, sourcePath string, size int64, preset string, settings EncodeSettings) *Job {
	return &Job{
		ID:           uuid.NewString(),
		Kind:         kind,
		FileName:     fileName,
		SourcePath:   sourcePath,
		Status:       StatusWaiting,
		OriginalSize: size,
		Preset:       preset,
		Settings:     settings,
		CreatedAt:    time.Now().UTC(),
	}
}

// IsTerminal reports whether the job has reached a final state. Terminal
// jobs never auto-transition; only an explicit retry leaves error state.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// ValidTransition enforces the allowed state machine edges.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusWaiting:
		return to == StatusAnalyzing || to == StatusProcessing || to == StatusCancelled
	case StatusAnalyzing:
		return to == StatusProcessing || to == StatusError || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusError || to == StatusCancelled
	case StatusError:
		return to == StatusWaiting
	default:
		return false
	}
}

// Ratio computes the space saved as a fraction of the original size,
// clamped to [0, 1]. Encoder fallback paths can produce outputs larger
// than the input, which would otherwise yield negative ratios.
func Ratio(originalSize, outputSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	r := float64(originalSize-outputSize) / float64(originalSize)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// ClampProgress bounds a reported percentage to [0, 100]. Encoder
// progress is best-effort and may arrive bursty or out of range.
func ClampProgress(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ETA projects remaining time from elapsed time and current progress.
func ETA(elapsed time.Duration, progress float64) string {
	if progress <= 0 {
		return "calculating"
	}
	fraction := progress / 100
	remaining := time.Duration(float64(elapsed) * (1 - fraction) / fraction)
	if remaining <= 0 {
		return "almost done"
	}
	return remaining.Round(time.Second).String()
}
