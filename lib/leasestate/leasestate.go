// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package leasestate persists the set of outstanding credential leases
// to disk so that leases acquired by a process that crashed before
// Close can be found and released on the next run ("sanctum leases
// release-orphans").
//
// The journal is one CBOR file per agent under the state directory,
// rewritten atomically (write to a temp file, then rename) on every
// change. A missing journal reads as an empty lease set.
package leasestate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jwgale/sanctum-go/lib/codec"
)

// journalVersion identifies the journal format. Bump when the Record
// layout changes incompatibly.
const journalVersion = 1

// Record is the on-disk journal content.
type Record struct {
	Version int      `cbor:"version"`
	Agent   string   `cbor:"agent"`
	Leases  []string `cbor:"leases"`
}

// Journal tracks lease ids for one agent in a state directory.
type Journal struct {
	agent string
	path  string
}

// New creates a journal for the given agent under stateDir. The
// directory is created on first write, not here.
func New(stateDir, agent string) *Journal {
	return &Journal{
		agent: agent,
		path:  filepath.Join(stateDir, agent+".leases"),
	}
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Load reads the current lease ids. A missing journal file yields an
// empty slice and no error.
func (j *Journal) Load() ([]string, error) {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lease journal: %w", err)
	}

	var record Record
	if err := codec.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding lease journal %s: %w", j.path, err)
	}
	return record.Leases, nil
}

// Add records a lease id, preserving any ids already journaled (for
// example by an earlier run of the same agent). Adding a present id is
// a no-op.
func (j *Journal) Add(leaseID string) error {
	leases, err := j.Load()
	if err != nil {
		return err
	}
	for _, existing := range leases {
		if existing == leaseID {
			return nil
		}
	}
	return j.Save(append(leases, leaseID))
}

// Remove drops a lease id from the journal. Removing an absent id is a
// no-op.
func (j *Journal) Remove(leaseID string) error {
	leases, err := j.Load()
	if err != nil {
		return err
	}
	remaining := leases[:0]
	for _, existing := range leases {
		if existing != leaseID {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) == len(leases) {
		return nil
	}
	return j.Save(remaining)
}

// Save replaces the journal contents with the given lease ids. An empty
// set removes the journal file entirely so a clean shutdown leaves no
// state behind.
func (j *Journal) Save(leases []string) error {
	if len(leases) == 0 {
		err := os.Remove(j.path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing lease journal: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	record := Record{
		Version: journalVersion,
		Agent:   j.agent,
		Leases:  leases,
	}
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding lease journal: %w", err)
	}

	// Write-then-rename so a crash mid-write never leaves a truncated
	// journal; rename is atomic on the same filesystem.
	temporary := j.path + ".tmp"
	if err := os.WriteFile(temporary, data, 0600); err != nil {
		return fmt.Errorf("writing lease journal: %w", err)
	}
	if err := os.Rename(temporary, j.path); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("replacing lease journal: %w", err)
	}
	return nil
}
