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

// Package config holds the tunable constants of the ETL engine and the
// handful of behavior flags that the reference implementation left as open
// questions (see DESIGN.md).
package config

// Config collects every tunable the engine reads. Zero value is not useful;
// always start from Default().
type Config struct {
	// RowGroupSize is the number of logical rows per columnar row group and
	// per variable-buffer compressed block.
	RowGroupSize int
	// RowGroupsPerFile is the number of row groups written to a single
	// columnar output file before a new file is started.
	RowGroupsPerFile int
	// CompactionWindow is the number of (item, lineGroup) records a type may
	// buffer; a type holding more than this is compacted and flushed at the
	// end of the current chunk, without waiting for the group's last chunk.
	CompactionWindow int
	// OutlierThreshold is the per-flush compacted-entry count above which a
	// flush is considered "dense" and routed to its own per-type file,
	// rather than the shared outlier stream.
	OutlierThreshold int

	// DictSampleChunks is the number of per-variable chunk files sampled
	// when estimating chunk-level frequency during dictionary discovery.
	DictSampleChunks int
	// DictChunkRatioThreshold is the fraction of sampled chunks an item
	// must appear in (numerator divided by DictSampleChunks, not the
	// number of chunks actually sampled) to count toward a group's
	// frequent-item vote.
	DictChunkRatioThreshold float64
	// DictGroupRatioThreshold is the fraction of groups that must vote an
	// item frequent for it to be promoted into the final dictionary.
	DictGroupRatioThreshold float64
	// DictNumThreshold is a minimum total-occurrence count, preserved from
	// the reference implementation but disabled by default
	// (EnableDictNumThreshold gates it).
	DictNumThreshold int
	// EnableDictNumThreshold gates the otherwise-dead DictNumThreshold
	// check. The reference source declares the constant but never applies
	// it; reimplementations must make that an explicit, off-by-default
	// choice instead of silently resurrecting it.
	EnableDictNumThreshold bool

	// CleanStaleOutputs removes prior compressed/compacted_type_* and
	// compressed/outlier* files before a run. parquets/ is recreated on
	// every run whatever this flag says.
	CleanStaleOutputs bool
	// PersistBlockOffsets writes the variable-buffer's block-offset table
	// to a JSON sidecar file next to the .maui file.
	PersistBlockOffsets bool
}

// Default returns the reference implementation's tunable defaults.
func Default() Config {
	return Config{
		RowGroupSize:            100000,
		RowGroupsPerFile:        10,
		CompactionWindow:        1000000,
		OutlierThreshold:        1000,
		DictSampleChunks:        5,
		DictChunkRatioThreshold: 0.6,
		DictGroupRatioThreshold: 0.6,
		DictNumThreshold:        100,
		EnableDictNumThreshold:  false,
		CleanStaleOutputs:       true,
		PersistBlockOffsets:     true,
	}
}
