package encoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/bytecodealliance/wasmtime-go/v39"

	"github.com/vidpress/orchestrator/internal/job"
)

// WasmtimeEngine runs the encoder module with wasmtime-go, which copes
// better with very large modules. The module compiles once at
// Initialize; each operation gets its own store and linker.
type WasmtimeEngine struct {
	wasmPath string

	mu     sync.Mutex
	engine *wasmtime.Engine
	module *wasmtime.Module
}

func NewWasmtimeEngine(wasmPath string) *WasmtimeEngine {
	return &WasmtimeEngine{wasmPath: wasmPath}
}

func (e *WasmtimeEngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.module != nil {
		return nil
	}

	wasmBytes, err := os.ReadFile(e.wasmPath)
	if err != nil {
		return fmt.Errorf("read encoder module: %w", err)
	}

	engine := wasmtime.NewEngine()
	module, err := wasmtime.NewModule(engine, wasmBytes)
	if err != nil {
		return fmt.Errorf("compile encoder module: %w", err)
	}

	e.engine = engine
	e.module = module
	return nil
}

func (e *WasmtimeEngine) Close(ctx context.Context) error {
	return nil
}

func (e *WasmtimeEngine) Metadata(ctx context.Context, data []byte) (Metadata, error) {
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

func (e *WasmtimeEngine) Compress(ctx context.Context, data []byte, settings job.EncodeSettings, onProgress ProgressFunc) ([]byte, error) {
	opts, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return e.invoke(ctx, entryCompress, data, opts, onProgress)
}

func (e *WasmtimeEngine) Repair(ctx context.Context, data []byte, settings job.RepairSettings, onProgress ProgressFunc) ([]byte, error) {
	opts, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return e.invoke(ctx, entryRepair, data, opts, onProgress)
}

// hostSpan validates a guest-supplied pointer/length pair against the
// exported memory. Hostile or buggy guests can hand over negative or
// out-of-range values; those are dropped, and over-long spans are
// clamped to the memory end.
func hostSpan(ptr, size int32, memLen int) (start, end int, ok bool) {
	if ptr < 0 || size <= 0 || int(ptr) >= memLen {
		return 0, 0, false
	}
	end = int(ptr) + int(size)
	if end > memLen {
		end = memLen
	}
	return int(ptr), end, true
}

func (e *WasmtimeEngine) invoke(ctx context.Context, entry string, input, options []byte, onProgress ProgressFunc) ([]byte, error) {
	e.mu.Lock()
	engine, module := e.engine, e.module
	e.mu.Unlock()

	if module == nil {
		return nil, fmt.Errorf("encoder module not initialized")
	}

	store := wasmtime.NewStore(engine)

	wasiConfig := wasmtime.NewWasiConfig()
	store.SetWasi(wasiConfig)

	linker := wasmtime.NewLinker(engine)
	if err := linker.DefineWasi(); err != nil {
		return nil, fmt.Errorf("define wasi: %w", err)
	}

	var output []byte

	guestMemory := func(caller *wasmtime.Caller) []byte {
		ext := caller.GetExport("memory")
		if ext == nil {
			return nil
		}
		mem := ext.Memory()
		if mem == nil {
			return nil
		}
		return mem.UnsafeData(caller)
	}

	copyIn := func(caller *wasmtime.Caller, src []byte, ptr, size int32) {
		buf := guestMemory(caller)
		start, end, ok := hostSpan(ptr, size, len(buf))
		if !ok {
			return
		}
		n := min(end-start, len(src))
		copy(buf[start:start+n], src[:n])
	}

	if err := linker.FuncWrap(hostModule, "input_len", func() int32 {
		return int32(len(input))
	}); err != nil {
		return nil, fmt.Errorf("define input_len: %w", err)
	}
	if err := linker.FuncWrap(hostModule, "read_input", func(caller *wasmtime.Caller, ptr, size int32) {
		copyIn(caller, input, ptr, size)
	}); err != nil {
		return nil, fmt.Errorf("define read_input: %w", err)
	}
	if err := linker.FuncWrap(hostModule, "options_len", func() int32 {
		return int32(len(options))
	}); err != nil {
		return nil, fmt.Errorf("define options_len: %w", err)
	}
	if err := linker.FuncWrap(hostModule, "read_options", func(caller *wasmtime.Caller, ptr, size int32) {
		copyIn(caller, options, ptr, size)
	}); err != nil {
		return nil, fmt.Errorf("define read_options: %w", err)
	}
	if err := linker.FuncWrap(hostModule, "write_output", func(caller *wasmtime.Caller, ptr, size int32) {
		buf := guestMemory(caller)
		start, end, ok := hostSpan(ptr, size, len(buf))
		if !ok {
			return
		}
		chunk := make([]byte, end-start)
		copy(chunk, buf[start:end])
		output = append(output, chunk...)
	}); err != nil {
		return nil, fmt.Errorf("define write_output: %w", err)
	}
	if err := linker.FuncWrap(hostModule, "report_progress", func(pct int32) {
		if onProgress != nil {
			onProgress(float64(pct))
		}
	}); err != nil {
		return nil, fmt.Errorf("define report_progress: %w", err)
	}

	instance, err := linker.Instantiate(store, module)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}

	fn := instance.GetFunc(store, entry)
	if fn == nil {
		return nil, fmt.Errorf("encoder module does not export %q", entry)
	}

	// wasmtime has no preemption hook here; on cancel the call keeps
	// running in its goroutine and the result is discarded.
	done := make(chan error, 1)
	go func() {
		_, callErr := fn.Call(store)
		done <- callErr
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case callErr := <-done:
		if callErr != nil {
			return nil, fmt.Errorf("%s: %w", entry, callErr)
		}
	}

	if len(output) == 0 {
		return nil, fmt.Errorf("%s: encoder produced no output", entry)
	}
	return output, nil
}
