// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具

package inference

import (
	"container/ring"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/ZSC714725/hallo2runner/internal/process"
)

// Progress holds the diffusion progress parsed from tqdm output
type Progress struct {
	Percent float64 `json:"percent"`
	Done    uint64  `json:"done"`
	Total   uint64  `json:"total"`
	// Bars counts tqdm bars that reached their total, one per generated clip
	Bars uint64 `json:"bars"`
}

// Parser implements process.Parser for the inference script output
type Parser interface {
	process.Parser
	Progress() Progress
	LastLine() string
}

type parser struct {
	re struct {
		tqdm *regexp.Regexp
	}

	log      *ring.Ring
	logLines int
	last     string

	progress Progress
	lock     sync.RWMutex
}

// ParserConfig for the parser
type ParserConfig struct {
	LogLines int
}

// NewParser creates a Parser keeping the last LogLines lines
func NewParser(config ParserConfig) Parser {
	p := &parser{
		logLines: config.LogLines,
	}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	// " 45%|████▌     | 18/40 [00:10<00:12,  1.80it/s]"
	p.re.tqdm = regexp.MustCompile(`(\d{1,3})%\|[^|]*\|\s*(\d+)/(\d+)`)
	p.log = ring.New(p.logLines)
	return p
}

func (p *parser) Parse(line string) uint64 {
	now := time.Now()

	p.lock.Lock()
	defer p.lock.Unlock()

	p.log.Value = process.Line{Timestamp: now, Data: line}
	p.log = p.log.Next()
	p.last = line

	m := p.re.tqdm.FindStringSubmatch(line)
	if m == nil {
		return 0
	}

	done, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return 0
	}
	total, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		return 0
	}
	if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
		p.progress.Percent = pct
	}

	if total > 0 && done == total && !(p.progress.Done == done && p.progress.Total == total) {
		p.progress.Bars++
	}
	p.progress.Done = done
	p.progress.Total = total

	return done
}

func (p *parser) ResetStats() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.progress = Progress{}
}

func (p *parser) ResetLog() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.log = ring.New(p.logLines)
	p.last = ""
}

func (p *parser) Log() []process.Line {
	var out []process.Line
	p.lock.RLock()
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(process.Line))
		}
	})
	p.lock.RUnlock()
	return out
}

func (p *parser) Progress() Progress {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.progress
}

func (p *parser) LastLine() string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.last
}
