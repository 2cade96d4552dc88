package encoder

import (
	"context"

	"github.com/vidpress/orchestrator/internal/job"
)

// ProgressFunc receives best-effort percentage updates from the encoder
// while an operation runs. Values may arrive bursty or out of range.
type ProgressFunc func(pct float64)

// Metadata describes a probed source video.
type Metadata struct {
	DurationSec float64 `json:"duration"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Size        int64   `json:"size"`
	Format      string  `json:"format"`
	FPS         float64 `json:"fps,omitempty"`
}

// Result reports host-side validation of a selected file.
type Result struct {
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error,omitempty"`
}

// Engine is the boundary to the external WASM video codec. Implemented
// by the wazero and wasmtime backends; tests substitute fakes.
type Engine interface {
	// Initialize loads and compiles the encoder module. Idempotent.
	Initialize(ctx context.Context) error
	Metadata(ctx context.Context, data []byte) (Metadata, error)
	Compress(ctx context.Context, data []byte, settings job.EncodeSettings, onProgress ProgressFunc) ([]byte, error)
	Repair(ctx context.Context, data []byte, settings job.RepairSettings, onProgress ProgressFunc) ([]byte, error)
	Close(ctx context.Context) error
}

// Guest ABI shared by both backends. The encoder module imports host
// functions from "env" and exports one entry point per operation plus a
// linear memory named "memory".
const (
	hostModule = "env"

	entryCompress = "compress"
	entryRepair   = "repair"
	entryProbe    = "probe"
)
