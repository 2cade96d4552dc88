package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vidpress/orchestrator/internal/encoder"
	"github.com/vidpress/orchestrator/internal/job"
	"github.com/vidpress/orchestrator/internal/storage"
)

var ErrEmptyBatch = errors.New("no files selected")

// Encoder is the slice of the encoder adapter the queue needs.
// Satisfied by *encoder.Adapter; tests substitute fakes.
type Encoder interface {
	Validate(fileName string, size int64) encoder.Result
	Metadata(ctx context.Context, data []byte) (encoder.Metadata, error)
	Compress(ctx context.Context, data []byte, settings job.EncodeSettings, onProgress encoder.ProgressFunc) ([]byte, error)
	Repair(ctx context.Context, data []byte, settings job.RepairSettings, onProgress encoder.ProgressFunc) ([]byte, error)
}

// HistoryFunc receives each completed job. Wiring decides whether and
// where to persist; failures there must never block the queue.
type HistoryFunc func(j job.Job)

// Source is one selected input file.
type Source struct {
	FileName string
	Data     []byte
}

// Rejected reports a file that failed selection-time validation. No job
// is created for it.
type Rejected struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// Orchestrator drives jobs through the encode/repair lifecycle:
// staggered starts, progress fan-out, cooperative cancellation and
// manual retry.
type Orchestrator struct {
	store     *job.Store
	events    *job.EventBus
	blobs     *storage.Store
	enc       Encoder
	onHistory HistoryFunc
	stagger   time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(store *job.Store, events *job.EventBus, blobs *storage.Store, enc Encoder, onHistory HistoryFunc, stagger time.Duration) *Orchestrator {
	return &Orchestrator{
		store:     store,
		events:    events,
		blobs:     blobs,
		enc:       enc,
		onHistory: onHistory,
		stagger:   stagger,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Enqueue materializes one waiting job per valid file. An empty batch
// is a validation error and touches nothing. Files failing validation
// are reported back without a job. Jobs start in batch order, each
// delayed one stagger interval after the previous, which bounds how
// many encoder invocations ramp up at once.
func (o *Orchestrator) Enqueue(kind job.Kind, sources []Source, preset string, settings job.EncodeSettings, repair *job.RepairSettings) ([]job.Job, []Rejected, error) {
	if len(sources) == 0 {
		return nil, nil, ErrEmptyBatch
	}

	var created []job.Job
	var rejected []Rejected

	for _, src := range sources {
		if res := o.enc.Validate(src.FileName, int64(len(src.Data))); !res.IsValid {
			rejected = append(rejected, Rejected{FileName: src.FileName, Reason: res.Error})
			continue
		}

		j := job.New(kind, src.FileName, "", int64(len(src.Data)), preset, settings)
		j.Repair = repair

		path, err := o.blobs.PutSource(j.ID, src.FileName, src.Data)
		if err != nil {
			rejected = append(rejected, Rejected{FileName: src.FileName, Reason: fmt.Sprintf("store source: %v", err)})
			continue
		}
		j.SourcePath = path

		o.store.Add(j)
		o.publishStatus(*j)
		created = append(created, *j)
	}

	for i, j := range created {
		o.scheduleStart(j.ID, time.Duration(i)*o.stagger)
	}

	return created, rejected, nil
}

func (o *Orchestrator) scheduleStart(id string, delay time.Duration) {
	if delay <= 0 {
		go o.run(id)
		return
	}
	time.AfterFunc(delay, func() { o.run(id) })
}

// Cancel transitions an active job to cancelled immediately and asks
// the running encoder invocation to stop. The abort is best-effort:
// the computation may run to completion internally, but its result is
// discarded on arrival.
func (o *Orchestrator) Cancel(id string) (job.Job, error) {
	j, err := o.store.MarkCancelled(id)
	if err != nil {
		return job.Job{}, err
	}

	o.mu.Lock()
	if cancel, ok := o.cancels[id]; ok {
		cancel()
		delete(o.cancels, id)
	}
	o.mu.Unlock()

	o.publishStatus(j)
	return j, nil
}

// Retry is valid only for errored jobs: progress back to zero, error
// cleared, and the job re-enters the queue. Retry is always manual;
// nothing here retries automatically.
func (o *Orchestrator) Retry(id string) (job.Job, error) {
	j, err := o.store.ResetForRetry(id)
	if err != nil {
		return job.Job{}, err
	}
	o.publishStatus(j)
	o.scheduleStart(id, 0)
	return j, nil
}

// ClearFinished removes terminal jobs from the active list and drops
// their stored source and output blobs.
func (o *Orchestrator) ClearFinished() int {
	removed := o.store.ClearFinished()
	for _, j := range removed {
		for _, path := range []string{j.SourcePath, j.OutputPath} {
			if path == "" {
				continue
			}
			if err := o.blobs.Delete(path); err != nil {
				log.Printf("Delete blob %s for job %s: %v", path, j.ID, err)
			}
		}
	}
	return len(removed)
}

// run drives a single job to a terminal state. Every failure inside is
// converted to a job-state transition; nothing escapes to the caller.
func (o *Orchestrator) run(id string) {
	j, ok := o.store.Get(id)
	if !ok || j.Status != job.StatusWaiting {
		// Cancelled (or cleared) while staggered, nothing to do.
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[id] = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		delete(o.cancels, id)
		o.mu.Unlock()
	}()

	data, err := o.blobs.Get(j.SourcePath)
	if err != nil {
		o.fail(id, fmt.Sprintf("read source file: %v", err))
		return
	}

	if j.Kind == job.KindRepair {
		aj, err := o.store.MarkAnalyzing(id)
		if err != nil {
			return
		}
		o.publishStatus(aj)

		if _, err := o.enc.Metadata(ctx, data); err != nil {
			o.fail(id, fmt.Sprintf("analyze source: %v", err))
			return
		}
	}

	pj, err := o.store.MarkProcessing(id)
	if err != nil {
		// Lost a race with cancel.
		return
	}
	o.publishStatus(pj)

	onProgress := func(pct float64) {
		if tick, applied := o.store.SetProgress(id, pct); applied {
			o.events.Publish(job.Event{
				JobID:    id,
				Type:     job.EventTypeProgress,
				Status:   tick.Status,
				Progress: tick.Progress,
			})
		}
	}

	var output []byte
	if j.Kind == job.KindRepair {
		repair := job.RepairSettings{}
		if j.Repair != nil {
			repair = *j.Repair
		}
		output, err = o.enc.Repair(ctx, data, repair, onProgress)
	} else {
		output, err = o.enc.Compress(ctx, data, j.Settings, onProgress)
	}
	if err != nil {
		o.fail(id, fmt.Sprintf("encode failed: %v", err))
		return
	}

	suffix := "compressed"
	if j.Kind == job.KindRepair {
		suffix = "repaired"
	}
	name := storage.DownloadName(j.FileName, suffix, j.Settings.OutputFormat)

	outPath, err := o.blobs.PutOutput(id, name, output)
	if err != nil {
		o.fail(id, fmt.Sprintf("store output: %v", err))
		return
	}

	done, err := o.store.MarkCompleted(id, outPath, int64(len(output)))
	if err != nil {
		// Cancelled mid-flight; the late result is discarded.
		return
	}
	o.publishStatus(done)

	if o.onHistory != nil {
		o.onHistory(done)
	}
}

// fail records the reason and leaves the queue running; a failed job
// never blocks the jobs behind it. Failures racing a cancel are
// dropped.
func (o *Orchestrator) fail(id, reason string) {
	j, err := o.store.MarkFailed(id, reason)
	if err != nil {
		log.Printf("Job %s failure discarded: %v", id, err)
		return
	}
	o.publishStatus(j)
}

func (o *Orchestrator) publishStatus(j job.Job) {
	o.events.Publish(job.Event{
		JobID:    j.ID,
		Type:     job.EventTypeStatus,
		Status:   j.Status,
		Progress: j.Progress,
		Error:    j.Error,
	})
}
