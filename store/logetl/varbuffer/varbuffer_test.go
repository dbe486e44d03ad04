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

package varbuffer

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/dolthub/gozstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsupialtail/rottnest-etl/store/logetl/codec"
	"github.com/marsupialtail/rottnest-etl/store/logetl/config"
	"github.com/marsupialtail/rottnest-etl/store/logetl/pathlayout"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(cwd) })
}

func readBlocks(t *testing.T, indexName string, offsets []int64) []string {
	t.Helper()
	data, err := os.ReadFile(pathlayout.MauiFile(indexName))
	require.NoError(t, err)

	blocks := make([]string, 0, len(offsets)-1)
	for i := 1; i < len(offsets); i++ {
		compressed := data[offsets[i-1]:offsets[i]]
		decompressed, err := gozstd.Decompress(nil, compressed)
		require.NoError(t, err)
		blocks = append(blocks, string(decompressed))
	}
	return blocks
}

// TestBlockAlignmentAndSkippedRows reproduces the worked example of eids
// [0, 0, -1, 0]: two rows with one variable cell each ("a", "b"), one row
// with no matched variable, and one more with a single cell ("c"), all
// flushed as a single block holding one four-row row group.
func TestBlockAlignmentAndSkippedRows(t *testing.T) {
	chdirTemp(t)

	cfg := config.Default()
	cfg.RowGroupSize = 4

	w, err := New(cfg, "myindex", codec.ZSTD{})
	require.NoError(t, err)

	w.PushCell("a")
	require.NoError(t, w.EndRow())

	w.PushCell("b")
	require.NoError(t, w.EndRow())

	require.NoError(t, w.EndRow()) // skipped row: no cells pushed

	w.PushCell("c")
	require.NoError(t, w.EndRow())

	require.NoError(t, w.Finalize())

	blocks := readBlocks(t, "myindex", w.Offsets())
	require.Len(t, blocks, 1)
	assert.Equal(t, "a \nb \n\nc \n", blocks[0])
}

func TestOffsetsMonotonicAcrossBlocks(t *testing.T) {
	chdirTemp(t)

	cfg := config.Default()
	cfg.RowGroupSize = 2

	w, err := New(cfg, "idx", codec.ZSTD{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		w.PushCell("x")
		require.NoError(t, w.EndRow())
	}
	require.NoError(t, w.Finalize())

	offsets := w.Offsets()
	require.Len(t, offsets, 4) // [0) + 2 full blocks + 1 short final block
	assert.Equal(t, int64(0), offsets[0])
	for i := 1; i < len(offsets); i++ {
		assert.Greater(t, offsets[i], offsets[i-1])
	}
}

func TestPersistBlockOffsetsSidecar(t *testing.T) {
	chdirTemp(t)

	cfg := config.Default()
	cfg.RowGroupSize = 2
	cfg.PersistBlockOffsets = true

	w, err := New(cfg, "idx", codec.ZSTD{})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		w.PushCell("v")
		require.NoError(t, w.EndRow())
	}
	require.NoError(t, w.Finalize())

	data, err := os.ReadFile(pathlayout.MauiOffsetIndexFile("idx"))
	require.NoError(t, err)

	var idx offsetIndex
	require.NoError(t, json.Unmarshal(data, &idx))
	assert.Equal(t, 2, idx.RowGroupSize)
	assert.Equal(t, w.Offsets(), idx.Offsets)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	chdirTemp(t)
	w, err := New(config.Default(), "idx", codec.ZSTD{})
	require.NoError(t, err)
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Finalize())
}
