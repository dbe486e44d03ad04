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

package pathlayout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marsupialtail/rottnest-etl/store/logetl/variable"
)

func TestChunkEidFileZeroPadding(t *testing.T) {
	assert.Equal(t, "compressed/3/chunk0000.eid", ChunkEidFile(3, 0))
	assert.Equal(t, "compressed/3/chunk0042.eid", ChunkEidFile(3, 42))
}

func TestVariableFile(t *testing.T) {
	key := variable.Key{Eid: 7, VarIndex: 2}
	assert.Equal(t, "compressed/1/variable_5/E7_V2", VariableFile(1, 5, key))
}

func TestParquetFile(t *testing.T) {
	assert.Equal(t, "parquets/myindex3.parquet", ParquetFile("myindex", 3))
}

func TestCompactedTypeFiles(t *testing.T) {
	assert.Equal(t, "compressed/compacted_type_0", CompactedTypeFile(0))
	assert.Equal(t, "compressed/compacted_type_0_lineno", CompactedTypeLinenoFile(0))
}
