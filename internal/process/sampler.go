// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package process

import (
	"sync"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Sampler collects CPU and memory usage of a running process
type Sampler interface {
	Start(pid int) error
	Sample()
	Stop()
	Current() (cpu float64, memory uint64)
	Peak() (cpu float64, memory uint64)
}

// sysSampler 使用 gopsutil 采集进程 CPU 和内存
type sysSampler struct {
	mu   sync.RWMutex
	proc *gopsutilprocess.Process

	cpu, peakCPU       float64
	memory, peakMemory uint64
}

// NewSysSampler 创建基于 gopsutil 的采样器
func NewSysSampler() Sampler {
	return &sysSampler{}
}

func (s *sysSampler) Start(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = proc
	s.cpu, s.peakCPU = 0, 0
	s.memory, s.peakMemory = 0, 0
	return nil
}

// Sample takes one measurement and updates the peaks
func (s *sysSampler) Sample() {
	s.mu.RLock()
	proc := s.proc
	s.mu.RUnlock()
	if proc == nil {
		return
	}

	var cpu float64
	var memory uint64
	if pct, err := proc.CPUPercent(); err == nil {
		cpu = pct
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		memory = info.RSS
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cpu, s.memory = cpu, memory
	if cpu > s.peakCPU {
		s.peakCPU = cpu
	}
	if memory > s.peakMemory {
		s.peakMemory = memory
	}
}

// Stop detaches from the process; peaks stay readable
func (s *sysSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = nil
	s.cpu, s.memory = 0, 0
}

func (s *sysSampler) Current() (float64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cpu, s.memory
}

func (s *sysSampler) Peak() (float64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakCPU, s.peakMemory
}

type nullSampler struct{}

// NewNullSampler returns a sampler that records nothing
func NewNullSampler() Sampler {
	return &nullSampler{}
}

func (s *nullSampler) Start(pid int) error        { return nil }
func (s *nullSampler) Sample()                    {}
func (s *nullSampler) Stop()                      {}
func (s *nullSampler) Current() (float64, uint64) { return 0, 0 }
func (s *nullSampler) Peak() (float64, uint64)    { return 0, 0 }
