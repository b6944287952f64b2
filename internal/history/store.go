// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Hallo2Runner - Hallo2 数字人视频生成编排工具
//
// Package history persists finished job records across server restarts.

package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
)

var ErrNotFound = errors.New("history record not found")

const (
	keyPrefix = "job/"
	// first key after every "job/..." key
	keyLimit = "job0"
)

// Record is the persisted summary of one job
type Record struct {
	ID         string          `json:"id"`
	State      string          `json:"state"`
	Request    json.RawMessage `json:"request"`
	OutputPath string          `json:"output_path,omitempty"`
	URL        string          `json:"url,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Duration   float64         `json:"duration_seconds"`
	PeakMemory uint64          `json:"peak_memory_bytes"`
}

// Store is a pebble-backed record store
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the store at dir
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores rec under its ID
func (s *Store) Put(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("history record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}
	return s.db.Set([]byte(keyPrefix+rec.ID), data, pebble.Sync)
}

// Get returns the record for id
func (s *Store) Get(id string) (*Record, error) {
	data, closer, err := s.db.Get([]byte(keyPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal history record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record for id
func (s *Store) Delete(id string) error {
	return s.db.Delete([]byte(keyPrefix+id), pebble.Sync)
}

// List returns all records, newest first
func (s *Store) List() ([]Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyLimit),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // Skip invalid records
		}
		records = append(records, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
