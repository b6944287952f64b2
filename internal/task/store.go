// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具
//
// Package task queues generation jobs for serve mode and runs them one at a
// time, since a single inference process already saturates the GPU.

package task

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/hallo2runner/internal/history"
	"github.com/ZSC714725/hallo2runner/internal/inference"
	"github.com/ZSC714725/hallo2runner/internal/logger"
	"github.com/ZSC714725/hallo2runner/internal/metrics"
	"github.com/ZSC714725/hallo2runner/internal/pipeline"
	"github.com/ZSC714725/hallo2runner/internal/process"
)

// State of a job
type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// IsTerminal reports whether the job will not change anymore
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateFailed
}

// Job is a queued or executed generation request
type Job struct {
	ID        string
	Request   pipeline.Request
	CreatedAt time.Time

	parser inference.Parser

	mu         sync.RWMutex
	state      State
	stage      pipeline.Stage
	startedAt  time.Time
	finishedAt time.Time
	result     *pipeline.Result
	err        error
	removed    bool
}

// Info is a point-in-time view of a job
type Info struct {
	ID         string             `json:"id"`
	State      State              `json:"state"`
	Stage      pipeline.Stage     `json:"stage,omitempty"`
	Request    pipeline.Request   `json:"request"`
	Progress   inference.Progress `json:"progress"`
	Result     *pipeline.Result   `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// State returns the current state
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Info returns a snapshot of the job
func (j *Job) Info() Info {
	j.mu.RLock()
	defer j.mu.RUnlock()

	info := Info{
		ID:        j.ID,
		State:     j.state,
		Stage:     j.stage,
		Request:   j.Request,
		Progress:  j.parser.Progress(),
		Result:    j.result,
		CreatedAt: j.CreatedAt,
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		info.StartedAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		info.FinishedAt = &t
	}
	return info
}

// Log returns the retained inference output lines
func (j *Job) Log() []process.Line {
	return j.parser.Log()
}

func (j *Job) setStage(stage pipeline.Stage) {
	j.mu.Lock()
	j.stage = stage
	j.mu.Unlock()
}

// Executor runs one job; *pipeline.Pipeline satisfies it
type Executor interface {
	Run(ctx context.Context, req pipeline.Request, hooks pipeline.Hooks) (*pipeline.Result, error)
}

// Config for the store
type Config struct {
	Executor Executor
	// History and Metrics are optional
	History   *history.Store
	Metrics   *metrics.Metrics
	Validator Validator
	QueueSize int
	// Retain caps how many finished or failed jobs stay in memory; older
	// ones remain reachable through History
	Retain   int
	LogLines int
	Logger   logger.Logger
}

// Store keeps jobs in memory and feeds them to a single worker
type Store struct {
	executor  Executor
	history   *history.Store
	metrics   *metrics.Metrics
	validator Validator
	logLines  int
	logger    logger.Logger
	queueSize int
	retain    int

	// pending 与 jobs 都受 mu 保护
	pending []*Job
	wake    chan struct{}
	jobs    map[string]*Job
	mu      sync.RWMutex

	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStore creates a store; call Start to begin processing
func NewStore(config Config) *Store {
	s := &Store{
		executor:  config.Executor,
		history:   config.History,
		metrics:   config.Metrics,
		validator: config.Validator,
		logLines:  config.LogLines,
		logger:    config.Logger,
		queueSize: config.QueueSize,
		retain:    config.Retain,
		wake:      make(chan struct{}, 1),
		jobs:      make(map[string]*Job),
	}
	if s.queueSize <= 0 {
		s.queueSize = 16
	}
	if s.retain <= 0 {
		s.retain = 100
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s
}

// Start launches the worker. Cancelling ctx or calling Close stops it; a
// running job is interrupted.
func (s *Store) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
}

// Close stops the worker and waits for it
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Submit validates req and queues it
func (s *Store) Submit(req pipeline.Request) (*Job, error) {
	if s.validator != nil {
		for _, path := range []string{req.ImagePath, req.AudioPath, req.OutputPath} {
			if !s.validator.IsValid(path) {
				return nil, fmt.Errorf("%w: %q", ErrPathNotAllowed, path)
			}
		}
	}

	job := &Job{
		ID:        shortuuid.New(),
		Request:   req,
		CreatedAt: time.Now(),
		parser:    inference.NewParser(inference.ParserConfig{LogLines: s.logLines}),
		state:     StateQueued,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if len(s.pending) >= s.queueSize {
		return nil, ErrQueueFull
	}
	s.pending = append(s.pending, job)
	s.jobs[job.ID] = job
	select {
	case s.wake <- struct{}{}:
	default:
	}

	if s.metrics != nil {
		s.metrics.JobsSubmitted.Inc()
		s.metrics.QueueDepth.Inc()
	}
	s.logger.Info("job %s queued (%s -> %s)", job.ID, req.AudioPath, req.OutputPath)
	return job, nil
}

// Get returns an in-memory job
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// List returns jobs oldest first, filtered by state when it is not empty
func (s *Store) List(state State) []*Job {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if state != "" && j.State() != state {
			continue
		}
		out = append(out, j)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// Delete removes a queued or finished job. Queued jobs are skipped by the
// worker; running jobs cannot be deleted.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		if s.history != nil {
			if _, err := s.history.Get(id); err == nil {
				return s.history.Delete(id)
			}
		}
		return ErrNotFound
	}

	j.mu.Lock()
	state := j.state
	if state == StateRunning {
		j.mu.Unlock()
		s.mu.Unlock()
		return ErrJobRunning
	}
	j.removed = true
	j.mu.Unlock()

	delete(s.jobs, id)
	for i, p := range s.pending {
		if p == j {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if state == StateQueued && s.metrics != nil {
		s.metrics.QueueDepth.Dec()
	}
	if state.IsTerminal() && s.history != nil {
		if err := s.history.Delete(id); err != nil {
			return err
		}
	}
	s.logger.Info("job %s deleted (%s)", id, state)
	return nil
}

func (s *Store) worker(ctx context.Context) {
	for ctx.Err() == nil {
		job := s.next()
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}
		s.execute(ctx, job)
		s.evict()
	}
}

// next pops the oldest pending job, or nil when the queue is empty
func (s *Store) next() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	job := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return job
}

// evict drops the oldest terminal jobs beyond the retention limit
func (s *Store) evict() {
	s.mu.Lock()
	defer s.mu.Unlock()

	type done struct {
		id string
		at time.Time
	}
	var terminal []done
	for id, j := range s.jobs {
		j.mu.RLock()
		if j.state.IsTerminal() {
			terminal = append(terminal, done{id: id, at: j.finishedAt})
		}
		j.mu.RUnlock()
	}
	if len(terminal) <= s.retain {
		return
	}
	sort.Slice(terminal, func(a, b int) bool {
		return terminal[a].at.Before(terminal[b].at)
	})
	for _, d := range terminal[:len(terminal)-s.retain] {
		delete(s.jobs, d.id)
	}
	s.logger.Debug("evicted %d terminal jobs from memory", len(terminal)-s.retain)
}

func (s *Store) execute(ctx context.Context, job *Job) {
	job.mu.Lock()
	if job.removed {
		job.mu.Unlock()
		return
	}
	job.state = StateRunning
	job.startedAt = time.Now()
	job.mu.Unlock()

	if s.metrics != nil {
		s.metrics.QueueDepth.Dec()
		s.metrics.Running.Set(1)
	}
	s.logger.Info("job %s started", job.ID)

	result, err := s.executor.Run(ctx, job.Request, pipeline.Hooks{
		JobID:   job.ID,
		Output:  io.Discard,
		Parser:  job.parser,
		OnStage: job.setStage,
	})

	job.mu.Lock()
	job.finishedAt = time.Now()
	job.result = result
	job.err = err
	if err != nil {
		job.state = StateFailed
	} else {
		job.state = StateFinished
	}
	state := job.state
	elapsed := job.finishedAt.Sub(job.startedAt)
	job.mu.Unlock()

	if err != nil {
		s.logger.Error("job %s failed: %v", job.ID, err)
	} else {
		s.logger.Info("job %s finished: %s", job.ID, result.OutputPath)
	}

	if s.metrics != nil {
		s.metrics.Running.Set(0)
		s.metrics.JobsTotal.WithLabelValues(string(state)).Inc()
		s.metrics.JobDuration.Observe(elapsed.Seconds())
		if stage := pipeline.FailedStage(err); stage != "" {
			s.metrics.StageFailures.WithLabelValues(string(stage)).Inc()
		}
		if result != nil {
			s.metrics.PeakMemory.Set(float64(result.PeakMemory))
		}
	}

	if s.history != nil {
		if err := s.history.Put(job.record()); err != nil {
			s.logger.Warn("persist job %s: %v", job.ID, err)
		}
	}
}

func (j *Job) record() history.Record {
	j.mu.RLock()
	defer j.mu.RUnlock()

	req, _ := json.Marshal(j.Request)
	rec := history.Record{
		ID:         j.ID,
		State:      string(j.state),
		Request:    req,
		CreatedAt:  j.CreatedAt,
		FinishedAt: j.finishedAt,
		Duration:   j.finishedAt.Sub(j.startedAt).Seconds(),
	}
	if j.result != nil {
		rec.OutputPath = j.result.OutputPath
		rec.URL = j.result.PublishedURL
		rec.PeakMemory = j.result.PeakMemory
	}
	if j.err != nil {
		rec.Error = j.err.Error()
	}
	return rec
}
