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

// Package pathlayout holds the canonical byte-path names for every file the
// engine reads or writes. It never opens a file; it only builds strings, so
// it is trivially unit-testable without a filesystem.
package pathlayout

import (
	"fmt"
	"path/filepath"

	"github.com/marsupialtail/rottnest-etl/store/logetl/variable"
)

// GroupDir is the top-level input directory for a group.
func GroupDir(group int) string {
	return filepath.Join("compressed", fmt.Sprintf("%d", group))
}

// ChunkEidFile is the per-chunk eid stream file, chunkNNNN.eid with N
// zero-padded to 4 digits.
func ChunkEidFile(group, chunk int) string {
	return filepath.Join(GroupDir(group), fmt.Sprintf("chunk%04d.eid", chunk))
}

// VariableTagFile is the per-chunk variable-metadata file.
func VariableTagFile(group, chunk int) string {
	return filepath.Join(GroupDir(group), fmt.Sprintf("variable_%d_tag.txt", chunk))
}

// VariableFile is the per-(chunk,variable) text stream.
func VariableFile(group, chunk int, key variable.Key) string {
	return filepath.Join(GroupDir(group), fmt.Sprintf("variable_%d", chunk), key.String())
}

// TimestampFile is the group's timestamp column.
func TimestampFile(group int) string {
	return filepath.Join(GroupDir(group), "timestamp")
}

// LogFile is the group's log column.
func LogFile(group int) string {
	return filepath.Join(GroupDir(group), "log")
}

// ParquetFile is the k-th columnar output file for an index.
func ParquetFile(indexName string, k int) string {
	return filepath.Join("parquets", fmt.Sprintf("%s%d.parquet", indexName, k))
}

// ParquetDir is the recreated output directory for columnar files.
func ParquetDir() string {
	return "parquets"
}

// MauiFile is the variable side-channel file.
func MauiFile(indexName string) string {
	return indexName + ".maui"
}

// MauiOffsetIndexFile is the sidecar block-offset index, written only when
// config.PersistBlockOffsets is set.
func MauiOffsetIndexFile(indexName string) string {
	return indexName + ".maui.idx"
}

// CompactedTypeFile is the dense per-type compacted-item file.
func CompactedTypeFile(t int) string {
	return filepath.Join("compressed", fmt.Sprintf("compacted_type_%d", t))
}

// CompactedTypeLinenoFile is the line-group-list companion to
// CompactedTypeFile; never created for type 0.
func CompactedTypeLinenoFile(t int) string {
	return filepath.Join("compressed", fmt.Sprintf("compacted_type_%d_lineno", t))
}

// OutlierFile is the shared sparse-item stream.
func OutlierFile() string {
	return filepath.Join("compressed", "outlier")
}

// OutlierLinenoFile is the shared sparse line-group-list stream.
func OutlierLinenoFile() string {
	return filepath.Join("compressed", "outlier_lineno")
}
