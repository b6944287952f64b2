// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具
//
// Package process wraps exec.Cmd for running one external tool to completion
// while streaming its output line by line.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"
)

// ErrAlreadyRunning is returned by Run while a previous Run is in progress
var ErrAlreadyRunning = errors.New("process already running")

// ExitError reports a non-zero exit status of the child
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Process represents a process
type Process interface {
	Run(ctx context.Context) error
	Status() Status
	IsRunning() bool
}

// Config for a process
type Config struct {
	Binary string
	Args   []string
	Dir    string
	// Env is appended to the current environment
	Env            []string
	Output         io.Writer
	Parser         Parser
	Sampler        Sampler
	SampleInterval time.Duration
	KillTimeout    time.Duration
	OnStart        func(pid int)
	OnExit         func(err error)
	OnStateChange  func(from, to string)
	Logger         Logger
}

// Status of a process
type Status struct {
	State    string
	States   States
	PID      int
	Duration time.Duration
	Time     time.Time
	CPU      struct {
		Current float64
		Peak    float64
	}
	Memory struct {
		Current uint64
		Peak    uint64
	}
}

// States cumulative counts
type States struct {
	Finished  uint64
	Starting  uint64
	Running   uint64
	Finishing uint64
	Failed    uint64
	Killed    uint64
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateFinished  stateType = "finished"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

var transitions = map[stateType][]stateType{
	stateFinished:  {stateStarting},
	stateStarting:  {stateRunning, stateFailed},
	stateRunning:   {stateFinished, stateFinishing, stateFailed, stateKilled},
	stateFinishing: {stateFinished, stateFailed, stateKilled},
	stateFailed:    {stateStarting},
	stateKilled:    {stateStarting},
}

type process struct {
	binary string
	args   []string
	dir    string
	env    []string
	output io.Writer
	pid    int

	state struct {
		state  stateType
		time   time.Time
		states States
		lock   sync.Mutex
	}
	parser         Parser
	sampler        Sampler
	sampleInterval time.Duration
	killTimeout    time.Duration
	logger         Logger
	callbacks      struct {
		onStart       func(pid int)
		onExit        func(err error)
		onStateChange func(from, to string)
	}
}

// New creates a new process
func New(config Config) (Process, error) {
	p := &process{
		binary:         config.Binary,
		args:           config.Args,
		dir:            config.Dir,
		env:            config.Env,
		output:         config.Output,
		parser:         config.Parser,
		sampler:        config.Sampler,
		sampleInterval: config.SampleInterval,
		killTimeout:    config.KillTimeout,
		logger:         config.Logger,
	}

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	if p.output == nil {
		p.output = io.Discard
	}
	if p.parser == nil {
		p.parser = &nullParser{}
	}
	if p.sampler == nil {
		p.sampler = NewSysSampler()
	}
	if p.sampleInterval <= 0 {
		p.sampleInterval = 2 * time.Second
	}
	if p.killTimeout <= 0 {
		p.killTimeout = 5 * time.Second
	}
	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	p.initState(stateFinished)
	p.callbacks.onStart = config.OnStart
	p.callbacks.onExit = config.OnExit
	p.callbacks.onStateChange = config.OnStateChange

	return p, nil
}

func (p *process) initState(state stateType) {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	p.state.state = state
	p.state.time = time.Now()
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()

	prevState := p.state.state
	allowed := false
	for _, next := range transitions[prevState] {
		if next == state {
			allowed = true
			break
		}
	}
	if !allowed {
		p.state.lock.Unlock()
		return fmt.Errorf("can't change from %s to %s", prevState, state)
	}

	p.state.state = state
	switch state {
	case stateFinished:
		p.state.states.Finished++
	case stateStarting:
		p.state.states.Starting++
	case stateRunning:
		p.state.states.Running++
	case stateFinishing:
		p.state.states.Finishing++
	case stateFailed:
		p.state.states.Failed++
	case stateKilled:
		p.state.states.Killed++
	}

	p.state.time = time.Now()
	p.state.lock.Unlock()

	if p.callbacks.onStateChange != nil {
		p.callbacks.onStateChange(prevState.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) IsRunning() bool {
	return p.getState().IsRunning()
}

func (p *process) Status() Status {
	cpu, memory := p.sampler.Current()
	peakCPU, peakMemory := p.sampler.Peak()

	p.state.lock.Lock()
	s := Status{
		State:    p.state.state.String(),
		States:   p.state.states,
		PID:      p.pid,
		Duration: time.Since(p.state.time),
		Time:     p.state.time,
	}
	p.state.lock.Unlock()

	s.CPU.Current = cpu
	s.CPU.Peak = peakCPU
	s.Memory.Current = memory
	s.Memory.Peak = peakMemory
	return s
}

// Run starts the process and blocks until it exited and all of its output
// has been forwarded. Cancelling ctx interrupts the child, then kills it
// after the kill timeout.
func (p *process) Run(ctx context.Context) error {
	if p.IsRunning() {
		return ErrAlreadyRunning
	}
	if err := p.setState(stateStarting); err != nil {
		return err
	}

	r, w, err := os.Pipe()
	if err != nil {
		p.setState(stateFailed)
		return fmt.Errorf("create output pipe: %w", err)
	}

	cmd := exec.Command(p.binary, p.args...)
	cmd.Dir = p.dir
	cmd.Env = append(os.Environ(), p.env...)
	// one pipe for both streams keeps the child's line ordering
	cmd.Stdout = w
	cmd.Stderr = w

	p.parser.ResetStats()
	p.parser.ResetLog()

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		p.parser.Parse(err.Error())
		p.setState(stateFailed)
		return fmt.Errorf("start %s: %w", p.binary, err)
	}
	w.Close()

	p.state.lock.Lock()
	p.pid = cmd.Process.Pid
	p.state.lock.Unlock()

	if err := p.sampler.Start(cmd.Process.Pid); err != nil {
		p.logger.Debug("resource sampling unavailable for pid %d: %v", cmd.Process.Pid, err)
	}
	p.setState(stateRunning)
	p.logger.Debug("started %s (pid %d)", p.binary, cmd.Process.Pid)

	if p.callbacks.onStart != nil {
		p.callbacks.onStart(cmd.Process.Pid)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.watch(ctx, cmd, done)
	}()
	go func() {
		defer wg.Done()
		p.sample(done)
	}()

	p.reader(r)
	r.Close()

	err = p.waiter(ctx, cmd)
	close(done)
	wg.Wait()

	if p.callbacks.onExit != nil {
		p.callbacks.onExit(err)
	}
	return err
}

// watch stops the child when ctx is cancelled
func (p *process) watch(ctx context.Context, cmd *exec.Cmd, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-ctx.Done():
		select {
		case <-done:
			return
		default:
		}
	}

	p.setState(stateFinishing)
	p.logger.Info("stopping pid %d: %v", cmd.Process.Pid, ctx.Err())

	if runtime.GOOS == "windows" {
		cmd.Process.Kill()
		return
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		cmd.Process.Kill()
		return
	}

	timer := time.NewTimer(p.killTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		cmd.Process.Kill()
	}
}

func (p *process) sample(done <-chan struct{}) {
	ticker := time.NewTicker(p.sampleInterval)
	defer ticker.Stop()

	p.sampler.Sample()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.sampler.Sample()
		}
	}
}

func (p *process) reader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLine)

	for scanner.Scan() {
		line := scanner.Text()
		p.parser.Parse(line)
		if _, err := io.WriteString(p.output, line+"\n"); err != nil {
			p.logger.Error("forward output: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Error("read output: %v", err)
		// drain so the child never blocks on a full pipe
		io.Copy(io.Discard, r)
	}
}

func (p *process) waiter(ctx context.Context, cmd *exec.Cmd) error {
	err := cmd.Wait()
	p.sampler.Sample()
	p.sampler.Stop()

	if err == nil {
		p.setState(stateFinished)
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		p.setState(stateKilled)
		return fmt.Errorf("wait %s: %w", p.binary, err)
	}

	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if ok && !status.Exited() {
		p.setState(stateKilled)
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", p.binary, ctx.Err())
		}
		return fmt.Errorf("%s killed: %w", p.binary, err)
	}

	p.setState(stateFailed)
	if ctx.Err() != nil {
		return fmt.Errorf("%s interrupted: %w", p.binary, ctx.Err())
	}
	return &ExitError{Code: exitErr.ExitCode()}
}

// scanLine splits on \n and \r so carriage-return progress bars become lines
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
