package encoder

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vidpress/orchestrator/internal/job"
)

type initState int

const (
	initUninitialized initState = iota
	initInitializing
	initReady
	initFailed
)

// supportedFormats is the selection-time allow-list.
var supportedFormats = map[string]bool{
	"mp4":  true,
	"mov":  true,
	"avi":  true,
	"mkv":  true,
	"webm": true,
	"m4v":  true,
}

// Adapter wraps an Engine with lazy, coalesced initialization and the
// host-side validation that runs before a job is ever created. It is a
// process-wide singleton shared across jobs; the engine loads once on
// first use and concurrent callers await the same in-flight load.
type Adapter struct {
	engine      Engine
	maxSize     int64 // 0 means unlimited
	mu          sync.Mutex
	state       initState
	inFlight    chan struct{}
	initFailure error
}

func NewAdapter(engine Engine, maxSize int64) *Adapter {
	return &Adapter{engine: engine, maxSize: maxSize}
}

// ensureReady coalesces concurrent initialization: the first caller
// kicks off the load, everyone else waits on the same channel. A failed
// load is retriable on the next call, so a manual job retry can succeed
// after a transient load failure.
func (a *Adapter) ensureReady(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case initReady:
		a.mu.Unlock()
		return nil
	case initInitializing:
		ch := a.inFlight
		a.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.state == initReady {
			return nil
		}
		return a.initFailure
	default:
		a.state = initInitializing
		a.inFlight = make(chan struct{})
		ch := a.inFlight
		a.mu.Unlock()

		err := a.engine.Initialize(ctx)

		a.mu.Lock()
		defer a.mu.Unlock()
		if err != nil {
			a.state = initFailed
			a.initFailure = fmt.Errorf("encoder initialization failed: %w", err)
		} else {
			a.state = initReady
			a.initFailure = nil
		}
		close(ch)
		return a.initFailure
	}
}

// Validate checks a selected file before any job is created:
// unsupported formats and oversized files are rejected immediately.
func (a *Adapter) Validate(fileName string, size int64) Result {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if !supportedFormats[ext] {
		return Result{Error: fmt.Sprintf("unsupported format: %q", ext)}
	}
	if a.maxSize > 0 && size > a.maxSize {
		return Result{Error: fmt.Sprintf("file too large: %d bytes (limit %d)", size, a.maxSize)}
	}
	return Result{IsValid: true}
}

func (a *Adapter) Metadata(ctx context.Context, data []byte) (Metadata, error) {
	if err := a.ensureReady(ctx); err != nil {
		return Metadata{}, err
	}
	return a.engine.Metadata(ctx, data)
}

func (a *Adapter) Compress(ctx context.Context, data []byte, settings job.EncodeSettings, onProgress ProgressFunc) ([]byte, error) {
	if err := a.ensureReady(ctx); err != nil {
		return nil, err
	}
	return a.engine.Compress(ctx, data, settings, onProgress)
}

func (a *Adapter) Repair(ctx context.Context, data []byte, settings job.RepairSettings, onProgress ProgressFunc) ([]byte, error) {
	if err := a.ensureReady(ctx); err != nil {
		return nil, err
	}
	return a.engine.Repair(ctx, data, settings, onProgress)
}

func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	ready := a.state == initReady
	a.mu.Unlock()
	if !ready {
		return nil
	}
	return a.engine.Close(ctx)
}
