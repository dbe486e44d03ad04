// Copyright 2024 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package compactor implements the bounded-window sort/dedup/merge with
// outlier partitioning described in spec.md §4.7: per type, it buffers
// (item, rowGroupId) records, and on flush produces sorted, deduplicated
// "compacted" entries routed either to a dense per-type file or to a shared
// sparse outlier stream.
package compactor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/marsupialtail/rottnest-etl/store/logetl/config"
	"github.com/marsupialtail/rottnest-etl/store/logetl/pathlayout"
)

// record is one (item, rowGroupId) pair. Kept as a single struct per the
// "pair of parallel arenas" design note — equivalent sort/tie-break
// semantics to two parallel slices, fewer allocations.
type record struct {
	item     string
	rowGroup int
}

// entry is one compacted (item, []rowGroupId) output row.
type entry struct {
	item      string
	rowGroups []int
}

// typeFiles holds the lazily-opened dense output files for one type.
type typeFiles struct {
	items  *os.File
	lineno *os.File // nil for type 0
}

// Compactor owns the per-type bounded windows and the lazily-opened
// per-type / shared outlier output files for the whole run.
type Compactor struct {
	cfg config.Config

	buffers map[int][]record
	opened  map[int]*typeFiles

	outlierItems  *os.File
	outlierLineno *os.File
}

// New creates a Compactor and opens the shared outlier files immediately
// (they are always written to, unlike per-type files which are lazy).
func New(cfg config.Config) (*Compactor, error) {
	items, err := os.Create(pathlayout.OutlierFile())
	if err != nil {
		return nil, fmt.Errorf("compactor: creating outlier file: %w", err)
	}
	lineno, err := os.Create(pathlayout.OutlierLinenoFile())
	if err != nil {
		items.Close()
		return nil, fmt.Errorf("compactor: creating outlier lineno file: %w", err)
	}

	return &Compactor{
		cfg:           cfg,
		buffers:       make(map[int][]record),
		opened:        make(map[int]*typeFiles),
		outlierItems:  items,
		outlierLineno: lineno,
	}, nil
}

// Record appends one (item, rowGroupId) pair to type t's window.
func (c *Compactor) Record(t int, item string, rowGroup int) {
	c.buffers[t] = append(c.buffers[t], record{item: item, rowGroup: rowGroup})
}

// MaybeFlush compacts and clears type t's window if it is non-empty and
// either over the compaction window or force is set.
func (c *Compactor) MaybeFlush(t int, force bool) error {
	buf := c.buffers[t]
	if len(buf) == 0 {
		return nil
	}
	if len(buf) <= c.cfg.CompactionWindow && !force {
		return nil
	}

	entries := compact(buf)
	if err := c.route(t, entries); err != nil {
		return err
	}

	delete(c.buffers, t)
	return nil
}

// FinalizeGroup force-flushes every type touched since the last finalize.
func (c *Compactor) FinalizeGroup(touchedTypes []int) error {
	for _, t := range touchedTypes {
		if err := c.MaybeFlush(t, true); err != nil {
			return err
		}
	}
	return nil
}

// compact sorts records by item ascending (ties by rowGroup ascending), then
// does a single-pass dedup: equal items merge their rowGroup lists,
// adjacent-unique.
func compact(buf []record) []entry {
	sorted := make([]record, len(buf))
	copy(sorted, buf)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].item != sorted[j].item {
			return sorted[i].item < sorted[j].item
		}
		return sorted[i].rowGroup < sorted[j].rowGroup
	})

	var entries []entry
	for _, r := range sorted {
		if len(entries) == 0 || entries[len(entries)-1].item != r.item {
			entries = append(entries, entry{item: r.item, rowGroups: []int{r.rowGroup}})
			continue
		}
		last := &entries[len(entries)-1]
		if last.rowGroups[len(last.rowGroups)-1] != r.rowGroup {
			last.rowGroups = append(last.rowGroups, r.rowGroup)
		}
	}
	return entries
}

// route writes entries to the dense per-type file if the flush is "dense"
// (more entries than OutlierThreshold), otherwise to the shared outlier
// stream.
func (c *Compactor) route(t int, entries []entry) error {
	if len(entries) > c.cfg.OutlierThreshold {
		return c.writeDense(t, entries)
	}
	return c.writeOutlier(entries)
}

func (c *Compactor) writeDense(t int, entries []entry) error {
	tf, err := c.openType(t)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(tf.items)
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, e.item); err != nil {
			return fmt.Errorf("compactor: writing compacted_type_%d: %w", t, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("compactor: flushing compacted_type_%d: %w", t, err)
	}

	// Type 0 (dictionary-matched) items are recoverable from the
	// variable-buffer side-channel, so their line-group lists are
	// deliberately never written.
	if t != 0 {
		lw := bufio.NewWriter(tf.lineno)
		for _, e := range entries {
			if err := writeLineno(lw, e.rowGroups); err != nil {
				return fmt.Errorf("compactor: writing compacted_type_%d_lineno: %w", t, err)
			}
		}
		if err := lw.Flush(); err != nil {
			return fmt.Errorf("compactor: flushing compacted_type_%d_lineno: %w", t, err)
		}
	}

	return nil
}

func (c *Compactor) writeOutlier(entries []entry) error {
	w := bufio.NewWriter(c.outlierItems)
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, e.item); err != nil {
			return fmt.Errorf("compactor: writing outlier file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("compactor: flushing outlier file: %w", err)
	}

	lw := bufio.NewWriter(c.outlierLineno)
	for _, e := range entries {
		if err := writeLineno(lw, e.rowGroups); err != nil {
			return fmt.Errorf("compactor: writing outlier lineno file: %w", err)
		}
	}
	if err := lw.Flush(); err != nil {
		return fmt.Errorf("compactor: flushing outlier lineno file: %w", err)
	}

	return nil
}

func writeLineno(w *bufio.Writer, rowGroups []int) error {
	parts := make([]string, len(rowGroups))
	for i, g := range rowGroups {
		parts[i] = strconv.Itoa(g)
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}

// openType lazily opens the dense output files for type t on first dense
// flush. VariableType only has an "observed" range of 0-63, so a map with
// sentinel "not yet open" semantics is used instead of a fixed array.
func (c *Compactor) openType(t int) (*typeFiles, error) {
	if tf, ok := c.opened[t]; ok {
		return tf, nil
	}

	items, err := os.Create(pathlayout.CompactedTypeFile(t))
	if err != nil {
		return nil, fmt.Errorf("compactor: creating compacted_type_%d: %w", t, err)
	}

	tf := &typeFiles{items: items}
	if t != 0 {
		lineno, err := os.Create(pathlayout.CompactedTypeLinenoFile(t))
		if err != nil {
			items.Close()
			return nil, fmt.Errorf("compactor: creating compacted_type_%d_lineno: %w", t, err)
		}
		tf.lineno = lineno
	}

	c.opened[t] = tf
	return tf, nil
}

// Close closes every opened output file (dense per-type and shared
// outlier). Call once at the end of the run.
func (c *Compactor) Close() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, tf := range c.opened {
		note(tf.items.Close())
		if tf.lineno != nil {
			note(tf.lineno.Close())
		}
	}
	note(c.outlierItems.Close())
	note(c.outlierLineno.Close())

	return firstErr
}

// CleanStaleOutputs removes prior compacted-type and outlier files before a
// run starts, resolving the reference implementation's clobbering ambiguity
// (spec.md §9) as an explicit, default-on behavior.
func CleanStaleOutputs() error {
	patterns := []string{"compressed/compacted_type_*", "compressed/outlier*"}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("compactor: globbing %s: %w", pattern, err)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("compactor: removing stale output %s: %w", m, err)
			}
		}
	}
	return nil
}
