package encoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/vidpress/orchestrator/internal/job"
)

// WazeroEngine runs the encoder module with wazero. The module is read
// and compiled lazily via Initialize; each operation gets a fresh
// runtime instance sharing one compilation cache.
type WazeroEngine struct {
	wasmPath string

	mu        sync.Mutex
	wasmBytes []byte
	cache     wazero.CompilationCache
}

func NewWazeroEngine(wasmPath string) *WazeroEngine {
	return &WazeroEngine{wasmPath: wasmPath}
}

func (e *WazeroEngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.wasmBytes != nil {
		return nil
	}

	wasmBytes, err := os.ReadFile(e.wasmPath)
	if err != nil {
		return fmt.Errorf("read encoder module: %w", err)
	}

	e.wasmBytes = wasmBytes
	e.cache = wazero.NewCompilationCache()
	return nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache == nil {
		return nil
	}
	return e.cache.Close(ctx)
}

func (e *WazeroEngine) Metadata(ctx context.Context, data []byte) (Metadata, error) {
	out, err := e.invoke(ctx, entryProbe, data, nil, nil)
	if err != nil {
		return Metadata{}, err
	}

	var meta Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Size == 0 {
		meta.Size = int64(len(data))
	}
	return meta, nil
}

func (e *WazeroEngine) Compress(ctx context.Context, data []byte, settings job.EncodeSettings, onProgress ProgressFunc) ([]byte, error) {
	opts, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return e.invoke(ctx, entryCompress, data, opts, onProgress)
}

func (e *WazeroEngine) Repair(ctx context.Context, data []byte, settings job.RepairSettings, onProgress ProgressFunc) ([]byte, error) {
	opts, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return e.invoke(ctx, entryRepair, data, opts, onProgress)
}

// invoke instantiates the module and calls one exported entry point.
// Input bytes and options JSON are pulled by the guest through host
// functions; output is pushed back the same way.
func (e *WazeroEngine) invoke(ctx context.Context, entry string, input, options []byte, onProgress ProgressFunc) ([]byte, error) {
	e.mu.Lock()
	wasmBytes, cache := e.wasmBytes, e.cache
	e.mu.Unlock()

	if wasmBytes == nil {
		return nil, fmt.Errorf("encoder module not initialized")
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithCompilationCache(cache).
		WithCloseOnContextDone(true))
	defer rt.Close(ctx)

	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	var output []byte

	_, err := rt.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().
		WithFunc(func() uint32 {
			return uint32(len(input))
		}).
		Export("input_len").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, size uint32) {
			m.Memory().Write(ptr, input[:min(int(size), len(input))])
		}).
		Export("read_input").
		NewFunctionBuilder().
		WithFunc(func() uint32 {
			return uint32(len(options))
		}).
		Export("options_len").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, size uint32) {
			m.Memory().Write(ptr, options[:min(int(size), len(options))])
		}).
		Export("read_options").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, size uint32) {
			data, _ := m.Memory().Read(ptr, size)
			chunk := make([]byte, len(data))
			copy(chunk, data)
			output = append(output, chunk...)
		}).
		Export("write_output").
		NewFunctionBuilder().
		WithFunc(func(pct uint32) {
			if onProgress != nil {
				onProgress(float64(pct))
			}
		}).
		Export("report_progress").
		Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("host module: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithStdout(io.Discard).
		WithStderr(io.Discard))
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(entry)
	if fn == nil {
		return nil, fmt.Errorf("encoder module does not export %q", entry)
	}

	if _, err := fn.Call(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", entry, err)
	}

	if len(output) == 0 {
		return nil, fmt.Errorf("%s: encoder produced no output", entry)
	}
	return output, nil
}
