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

// Package sampler reads the first few existing per-chunk files of a
// variable, for use by the dictionary builder's frequency estimate.
package sampler

import (
	"bufio"
	"fmt"
	"os"

	"github.com/marsupialtail/rottnest-etl/store/logetl/pathlayout"
	"github.com/marsupialtail/rottnest-etl/store/logetl/variable"
)

// maxLineSize bounds a single scanned line of a per-variable stream. The
// default bufio.Scanner token cap (64 KiB) is routinely too small for real
// variable values; this matches the unbounded std::getline the reference
// implementation reads with.
const maxLineSize = 64 * 1024 * 1024

// Sample walks chunks 0, 1, ... of group until it has read k chunks whose
// per-variable file exists (or chunks are exhausted), and returns the full
// line list of each, keyed by the 0-based index among the chunks sampled
// (not the chunk number itself). Fewer than k matching chunks is permitted.
func Sample(group, totalChunks int, key variable.Key, k int) (map[int][]string, error) {
	lines := make(map[int][]string)
	found := 0

	for c := 0; c < totalChunks && found < k; c++ {
		path := pathlayout.VariableFile(group, c, key)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("sampler: opening %s: %w", path, err)
		}

		var fileLines []string
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			fileLines = append(fileLines, scanner.Text())
		}
		serr := scanner.Err()
		f.Close()
		if serr != nil {
			return nil, fmt.Errorf("sampler: reading %s: %w", path, serr)
		}

		lines[found] = fileLines
		found++
	}

	return lines, nil
}
