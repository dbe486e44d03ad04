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

package metadata

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsupialtail/rottnest-etl/store/logetl/pathlayout"
	"github.com/marsupialtail/rottnest-etl/store/logetl/variable"
)

func writeTagFile(t *testing.T, group, chunk int, lines ...string) {
	t.Helper()
	path := pathlayout.VariableTagFile(group, chunk)
	require.NoError(t, os.MkdirAll(pathlayout.GroupDir(group), 0o755))
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadBasic(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	writeTagFile(t, 0, 0, "E1_V0 3", "E1_V1 3")
	writeTagFile(t, 0, 1, "E2_V0 5")

	info, err := Load(0, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, info.VariableToType[variable.Key{Eid: 1, VarIndex: 0}])
	assert.Equal(t, 3, info.VariableToType[variable.Key{Eid: 1, VarIndex: 1}])
	assert.Equal(t, 5, info.VariableToType[variable.Key{Eid: 2, VarIndex: 0}])

	_, ok := info.ChunkVariables[0][variable.Key{Eid: 1, VarIndex: 0}]
	assert.True(t, ok)
	_, ok = info.ChunkVariables[1][variable.Key{Eid: 2, VarIndex: 0}]
	assert.True(t, ok)
	assert.Len(t, info.ChunkVariables[0], 2)
	assert.Len(t, info.ChunkVariables[1], 1)
}

func TestLoadMissingTagFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	_, err = Load(0, 1)
	assert.ErrorIs(t, err, ErrMissingTagFile)
}

func TestLoadMalformedLine(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	writeTagFile(t, 0, 0, "not a tag line")

	_, err = Load(0, 1)
	assert.ErrorIs(t, err, ErrMalformedLine)
}
