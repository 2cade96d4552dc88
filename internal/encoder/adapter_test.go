package encoder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vidpress/orchestrator/internal/job"
)

type fakeEngine struct {
	initCalls atomic.Int32
	initErr   error
	initGate  chan struct{} // when set, Initialize blocks until closed
	output    []byte
}

func (f *fakeEngine) Initialize(ctx context.Context) error {
	f.initCalls.Add(1)
	if f.initGate != nil {
		<-f.initGate
	}
	return f.initErr
}

func (f *fakeEngine) Metadata(ctx context.Context, data []byte) (Metadata, error) {
	return Metadata{Size: int64(len(data)), Format: "mp4"}, nil
}

func (f *fakeEngine) Compress(ctx context.Context, data []byte, settings job.EncodeSettings, onProgress ProgressFunc) ([]byte, error) {
	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	return f.output, nil
}

func (f *fakeEngine) Repair(ctx context.Context, data []byte, settings job.RepairSettings, onProgress ProgressFunc) ([]byte, error) {
	return f.output, nil
}

func (f *fakeEngine) Close(ctx context.Context) error { return nil }

func TestAdapter_Validate(t *testing.T) {
	a := NewAdapter(&fakeEngine{}, 1000)

	if res := a.Validate("clip.mp4", 500); !res.IsValid {
		t.Errorf("expected valid, got %q", res.Error)
	}
	if res := a.Validate("notes.txt", 10); res.IsValid {
		t.Error("expected unsupported format rejected")
	}
	if res := a.Validate("clip.mp4", 2000); res.IsValid {
		t.Error("expected oversized file rejected")
	}
}

func TestAdapter_ValidateUnlimitedSize(t *testing.T) {
	a := NewAdapter(&fakeEngine{}, 0)

	if res := a.Validate("clip.mkv", 1<<40); !res.IsValid {
		t.Errorf("expected valid with no limit, got %q", res.Error)
	}
}

func TestAdapter_InitializeOnce(t *testing.T) {
	engine := &fakeEngine{output: []byte("out")}
	a := NewAdapter(engine, 0)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := a.Compress(ctx, []byte("in"), job.EncodeSettings{}, nil); err != nil {
			t.Fatalf("compress: %v", err)
		}
	}

	if n := engine.initCalls.Load(); n != 1 {
		t.Errorf("expected 1 init call, got %d", n)
	}
}

func TestAdapter_ConcurrentInitCoalesces(t *testing.T) {
	engine := &fakeEngine{output: []byte("out"), initGate: make(chan struct{})}
	a := NewAdapter(engine, 0)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.Compress(context.Background(), []byte("in"), job.EncodeSettings{}, nil)
		}(i)
	}

	close(engine.initGate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if n := engine.initCalls.Load(); n != 1 {
		t.Errorf("expected one in-flight init, got %d", n)
	}
}

func TestAdapter_InitFailureIsRetriable(t *testing.T) {
	engine := &fakeEngine{output: []byte("out"), initErr: errors.New("module missing")}
	a := NewAdapter(engine, 0)

	ctx := context.Background()
	if _, err := a.Compress(ctx, []byte("in"), job.EncodeSettings{}, nil); err == nil {
		t.Fatal("expected init failure")
	}

	engine.initErr = nil
	if _, err := a.Compress(ctx, []byte("in"), job.EncodeSettings{}, nil); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if n := engine.initCalls.Load(); n != 2 {
		t.Errorf("expected fresh attempt after failure, got %d calls", n)
	}
}
