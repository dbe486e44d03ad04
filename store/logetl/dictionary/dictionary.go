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

// Package dictionary runs the engine's pass 1: a two-phase scan over every
// group that discovers the set of variable values frequent enough, both
// within a group's sampled chunks and across groups, to be promoted to
// type 0 (dictionary-matched) during pass 2.
package dictionary

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/marsupialtail/rottnest-etl/store/logetl/config"
	"github.com/marsupialtail/rottnest-etl/store/logetl/metadata"
	"github.com/marsupialtail/rottnest-etl/store/logetl/sampler"
)

// Dictionary is the final promoted item set.
type Dictionary map[string]struct{}

// Contains reports whether item was promoted to type 0.
func (d Dictionary) Contains(item string) bool {
	_, ok := d[item]
	return ok
}

// Build runs the full pass-1 scan described in spec.md §4.4 across groups
// [0, numGroups), using totalChunks[g] as each group's chunk count.
func Build(log *logrus.Logger, cfg config.Config, numGroups int, totalChunks []int) (Dictionary, error) {
	stats := make(map[string]int)

	for g := 0; g < numGroups; g++ {
		info, err := metadata.Load(g, totalChunks[g])
		if err != nil {
			return nil, fmt.Errorf("dictionary: loading metadata for group %d: %w", g, err)
		}

		for key := range info.VariableToType {
			lines, serr := sampler.Sample(g, totalChunks[g], key, cfg.DictSampleChunks)
			if serr != nil {
				return nil, fmt.Errorf("dictionary: sampling group %d variable %s: %w", g, key, serr)
			}

			counters := make([]map[string]int, 0, len(lines))
			items := make(map[string]struct{})
			for i := 0; i < len(lines); i++ {
				counter := make(map[string]int)
				for _, item := range lines[i] {
					counter[item]++
					items[item] = struct{}{}
				}
				counters = append(counters, counter)
			}

			for item := range items {
				numChunks := 0
				numTimes := 0
				for _, counter := range counters {
					if counter[item] > 0 {
						numChunks++
						numTimes += counter[item]
					}
				}
				// The denominator here is deliberately cfg.DictSampleChunks,
				// not len(counters): a variable sampled from fewer chunks
				// than the target is biased against promotion. This is
				// intentional, not a bug.
				ratio := float64(numChunks) / float64(cfg.DictSampleChunks)
				if cfg.EnableDictNumThreshold && numTimes <= cfg.DictNumThreshold {
					continue
				}
				if ratio > cfg.DictChunkRatioThreshold {
					stats[item]++
				}
			}
		}
	}

	dict := make(Dictionary)
	for item, count := range stats {
		if float64(count)/float64(numGroups) > cfg.DictGroupRatioThreshold {
			dict[item] = struct{}{}
		}
	}

	if log != nil {
		log.WithField("size", len(dict)).Info("dictionary build complete")
	}

	return dict, nil
}
