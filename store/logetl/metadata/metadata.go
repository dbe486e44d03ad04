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

// Package metadata loads the per-chunk variable-tag files of a group into
// the two views the rest of the engine needs: which type each variable has,
// and which variables each chunk touches.
package metadata

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/marsupialtail/rottnest-etl/store/logetl/pathlayout"
	"github.com/marsupialtail/rottnest-etl/store/logetl/variable"
)

// ErrMissingTagFile is returned when a chunk's variable-tag file does not
// exist. It is fatal: the caller has already committed to totalChunks being
// accurate for the group.
var ErrMissingTagFile = errors.New("metadata: missing variable-tag file")

// ErrMalformedLine is returned when a variable-tag line does not match
// "E<int>_V<int> <int>".
var ErrMalformedLine = errors.New("metadata: malformed variable-tag line")

// maxLineSize bounds a single scanned line of a variable-tag file. The
// default bufio.Scanner token cap (64 KiB) is routinely too small for real
// variable values; this matches the unbounded std::getline the reference
// implementation reads with.
const maxLineSize = 64 * 1024 * 1024

// Info is the per-group variable metadata produced by Load.
type Info struct {
	// VariableToType is last-writer-wins across chunks: upstream guarantees
	// a variable's type is consistent wherever it appears, so ties are
	// arbitrary and undefined by construction.
	VariableToType map[variable.Key]int
	// ChunkVariables holds exactly the keys mentioned in chunk c's tag file.
	ChunkVariables map[int]map[variable.Key]struct{}
}

// Load reads the tag files for chunks [0, totalChunks) of group.
func Load(group, totalChunks int) (Info, error) {
	info := Info{
		VariableToType: make(map[variable.Key]int),
		ChunkVariables: make(map[int]map[variable.Key]struct{}, totalChunks),
	}

	for c := 0; c < totalChunks; c++ {
		path := pathlayout.VariableTagFile(group, c)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return Info{}, fmt.Errorf("%w: %s", ErrMissingTagFile, path)
			}
			return Info{}, fmt.Errorf("metadata: opening %s: %w", path, err)
		}

		vars := make(map[variable.Key]struct{})
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			var keyStr string
			var t int
			n, serr := fmt.Sscanf(line, "%s %d", &keyStr, &t)
			if serr != nil || n != 2 {
				f.Close()
				return Info{}, fmt.Errorf("%w: %s: %q", ErrMalformedLine, path, line)
			}
			key, perr := variable.Parse(keyStr)
			if perr != nil {
				f.Close()
				return Info{}, fmt.Errorf("%w: %s: %q", ErrMalformedLine, path, line)
			}
			info.VariableToType[key] = t
			vars[key] = struct{}{}
		}
		serr := scanner.Err()
		f.Close()
		if serr != nil {
			return Info{}, fmt.Errorf("metadata: reading %s: %w", path, serr)
		}

		info.ChunkVariables[c] = vars
	}

	return info, nil
}
