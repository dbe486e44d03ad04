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

// Package varbuffer writes the binary side-channel: per-row concatenated
// variable text, compressed in fixed-sized blocks, indexed by block byte
// offsets (the ".maui" file of spec.md §6).
package varbuffer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/marsupialtail/rottnest-etl/store/logetl/codec"
	"github.com/marsupialtail/rottnest-etl/store/logetl/config"
	"github.com/marsupialtail/rottnest-etl/store/logetl/pathlayout"
)

// offsetIndex is the JSON shape of the persisted block-offset sidecar.
type offsetIndex struct {
	RowGroupSize int     `json:"rowGroupSize"`
	Offsets      []int64 `json:"offsets"`
}

// Writer accumulates row cells into an in-memory buffer and flushes it as a
// compressed block every cfg.RowGroupSize rows.
type Writer struct {
	cfg       config.Config
	indexName string
	codec     codec.Block

	file *os.File
	buf  bytes.Buffer
	n    int // logical row counter

	offsets   []int64
	finalized bool
}

// New opens the .maui output file and prepares a Writer. offsets starts as
// [0] per spec.md's BlockOffsetTable invariant.
func New(cfg config.Config, indexName string, blockCodec codec.Block) (*Writer, error) {
	path := pathlayout.MauiFile(indexName)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("varbuffer: creating %s: %w", path, err)
	}
	return &Writer{
		cfg:       cfg,
		indexName: indexName,
		codec:     blockCodec,
		file:      f,
		offsets:   []int64{0},
	}, nil
}

// PushCell appends text followed by a single space to the in-memory buffer.
func (w *Writer) PushCell(text string) {
	w.buf.WriteString(text)
	w.buf.WriteByte(' ')
}

// EndRow appends a newline, advances the logical row counter, and, if that
// counter is now a multiple of RowGroupSize, compresses and flushes the
// whole buffer as one block.
func (w *Writer) EndRow() error {
	w.buf.WriteByte('\n')
	w.n++
	if w.n%w.cfg.RowGroupSize == 0 {
		return w.flushBlock()
	}
	return nil
}

// flushBlock compresses the current buffer as one block, appends it to the
// output file, records the post-write offset, and resets the buffer.
func (w *Writer) flushBlock() error {
	compressed, err := w.codec.Compress(w.buf.Bytes())
	if err != nil {
		return fmt.Errorf("varbuffer: compressing block: %w", err)
	}
	if _, err := w.file.Write(compressed); err != nil {
		return fmt.Errorf("varbuffer: writing block: %w", err)
	}
	pos, err := w.file.Seek(0, os.SEEK_CUR)
	if err != nil {
		return fmt.Errorf("varbuffer: querying file position: %w", err)
	}
	w.offsets = append(w.offsets, pos)
	w.buf.Reset()
	return nil
}

// Offsets returns the block-offset table built so far.
func (w *Writer) Offsets() []int64 {
	out := make([]int64, len(w.offsets))
	copy(out, w.offsets)
	return out
}

// Finalize flushes any remaining buffered rows as one final (possibly
// short) block, closes the output file, and — if configured — writes the
// block-offset sidecar index.
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	if w.buf.Len() > 0 {
		if err := w.flushBlock(); err != nil {
			return err
		}
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("varbuffer: closing .maui file: %w", err)
	}

	if w.cfg.PersistBlockOffsets {
		idx := offsetIndex{RowGroupSize: w.cfg.RowGroupSize, Offsets: w.offsets}
		data, err := json.Marshal(idx)
		if err != nil {
			return fmt.Errorf("varbuffer: marshaling offset index: %w", err)
		}
		path := pathlayout.MauiOffsetIndexFile(w.indexName)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("varbuffer: writing %s: %w", path, err)
		}
	}

	return nil
}
