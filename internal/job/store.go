package job

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrNotFound = errors.New("job not found")

// Store keeps the active job collection. Mutation goes through the
// transition methods so every status change is validated against the
// state machine; reads return snapshot copies.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string // FIFO order
}

func NewStore() *Store {
	return &Store{
		jobs:  make(map[string]*Job),
		order: make([]string, 0),
	}
}

func (s *Store) Add(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
}

func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns jobs in enqueue order, optionally filtered by status.
// Status filters are derived views; nothing is stored per filter.
func (s *Store) List(status Status) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		j := s.jobs[id]
		if status == "" || j.Status == status {
			out = append(out, *j)
		}
	}
	return out
}

func (s *Store) Stats() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[Status]int)
	for _, j := range s.jobs {
		stats[j.Status]++
	}
	return stats
}

// ClearFinished removes terminal jobs and returns their final
// snapshots so callers can release attached resources. Active jobs are
// never removed implicitly.
func (s *Store) ClearFinished() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	var removed []Job
	for _, id := range s.order {
		if j := s.jobs[id]; j.IsTerminal() {
			removed = append(removed, *j)
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}

func (s *Store) transition(id string, to Status) (*Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !ValidTransition(j.Status, to) {
		return nil, fmt.Errorf("invalid transition: %s -> %s", j.Status, to)
	}
	j.Status = to
	return j, nil
}

// MarkAnalyzing moves a waiting repair job into its probe stage.
func (s *Store) MarkAnalyzing(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(id, StatusAnalyzing)
	if err != nil {
		return Job{}, err
	}
	return *j, nil
}

// MarkProcessing records the start time and moves the job into
// processing.
func (s *Store) MarkProcessing(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(id, StatusProcessing)
	if err != nil {
		return Job{}, err
	}
	now := time.Now().UTC()
	j.StartTime = &now
	return *j, nil
}

// SetProgress applies a progress tick. Ticks for jobs that are not
// processing are dropped: a stale encoder callback racing a cancel must
// not resurrect the job.
func (s *Store) SetProgress(id string, pct float64) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status != StatusProcessing {
		return Job{}, false
	}
	j.Progress = ClampProgress(pct)
	return *j, true
}

func (s *Store) MarkCompleted(id, outputPath string, outputSize int64) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(id, StatusCompleted)
	if err != nil {
		return Job{}, err
	}
	now := time.Now().UTC()
	j.Progress = 100
	j.OutputPath = outputPath
	j.OutputSize = outputSize
	j.Ratio = Ratio(j.OriginalSize, outputSize)
	j.EndTime = &now
	return *j, nil
}

func (s *Store) MarkFailed(id, reason string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	// A cancelled job's late failure is discarded, same as progress.
	if !ValidTransition(j.Status, StatusError) {
		return Job{}, fmt.Errorf("invalid transition: %s -> %s", j.Status, StatusError)
	}
	now := time.Now().UTC()
	j.Status = StatusError
	j.Error = reason
	j.Progress = capNonComplete(j.Progress)
	j.EndTime = &now
	return *j, nil
}

// MarkCancelled is valid from waiting, analyzing and processing. The
// underlying encoder call is not force-aborted; its eventual result is
// discarded on arrival.
func (s *Store) MarkCancelled(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(id, StatusCancelled)
	if err != nil {
		return Job{}, err
	}
	now := time.Now().UTC()
	j.Progress = capNonComplete(j.Progress)
	j.EndTime = &now
	return *j, nil
}

// capNonComplete keeps 100% exclusive to completed jobs: an encoder
// that reports a full tick and then errors must not show as done.
func capNonComplete(pct float64) float64 {
	if pct >= 100 {
		return 99
	}
	return pct
}

// ResetForRetry returns an errored job to waiting: progress back to
// zero, error cleared, timestamps and output wiped.
func (s *Store) ResetForRetry(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(id, StatusWaiting)
	if err != nil {
		return Job{}, err
	}
	j.Progress = 0
	j.Error = ""
	j.OutputPath = ""
	j.OutputSize = 0
	j.Ratio = 0
	j.StartTime = nil
	j.EndTime = nil
	return *j, nil
}
