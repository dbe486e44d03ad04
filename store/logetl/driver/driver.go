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

// Package driver is the ETL engine's orchestrator (spec.md §4.8): it
// pre-scans group/chunk layout, runs the dictionary pass, then streams
// every group's rows through the columnar sink, the variable-buffer
// writer, and the type compactor, keeping a single global row counter that
// ties all three outputs together.
package driver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/marsupialtail/rottnest-etl/store/logetl/codec"
	"github.com/marsupialtail/rottnest-etl/store/logetl/columnar"
	"github.com/marsupialtail/rottnest-etl/store/logetl/compactor"
	"github.com/marsupialtail/rottnest-etl/store/logetl/config"
	"github.com/marsupialtail/rottnest-etl/store/logetl/dictionary"
	"github.com/marsupialtail/rottnest-etl/store/logetl/metadata"
	"github.com/marsupialtail/rottnest-etl/store/logetl/pathlayout"
	"github.com/marsupialtail/rottnest-etl/store/logetl/variable"
	"github.com/marsupialtail/rottnest-etl/store/logetl/varbuffer"
)

// Stage names reported in Progress messages, mirroring the teacher's
// ArchiveBuildProgressMsg.Stage strings.
const (
	StageDictionary = "Building Dictionary"
	StageGroup      = "Streaming Groups"
)

// maxLineSize bounds a single scanned line of a variable-value stream. The
// default bufio.Scanner token cap (64 KiB) is routinely too small for real
// variable values; this matches the unbounded std::getline the reference
// implementation reads with.
const maxLineSize = 64 * 1024 * 1024

// Progress is one update emitted on the channel passed to Run, grounded on
// store/nbs/archive_build.go's ArchiveBuildProgressMsg.
type Progress struct {
	Stage     string
	Total     int
	Completed int
}

// Result is returned by Run once the engine has finished successfully.
type Result struct {
	GlobalLineCount int
	DictionarySize  int
	BlockOffsets    []int64
}

// Run executes the full two-pass engine against indexName/numGroups,
// reporting progress on progressCh if it is non-nil. ctx is checked only at
// group boundaries: the engine is single-threaded and synchronous, per
// spec.md §5, so there is no mid-group cancellation.
func Run(ctx context.Context, log *logrus.Logger, cfg config.Config, indexName string, numGroups int, progressCh chan<- Progress) (Result, error) {
	if cfg.CleanStaleOutputs {
		if err := compactor.CleanStaleOutputs(); err != nil {
			return Result{}, err
		}
	}

	totalChunks := make([]int, numGroups)
	for g := 0; g < numGroups; g++ {
		totalChunks[g] = countChunks(g)
	}

	report(progressCh, Progress{Stage: StageDictionary, Total: numGroups, Completed: 0})
	dict, err := dictionary.Build(log, cfg, numGroups, totalChunks)
	if err != nil {
		return Result{}, fmt.Errorf("driver: dictionary pass: %w", err)
	}
	log.WithFields(logrus.Fields{"size": len(dict)}).Info("dictionary pass complete")

	sink, err := columnar.New(cfg, indexName)
	if err != nil {
		return Result{}, fmt.Errorf("driver: initializing columnar sink: %w", err)
	}

	vbw, err := varbuffer.New(cfg, indexName, codec.ZSTD{})
	if err != nil {
		return Result{}, fmt.Errorf("driver: initializing variable-buffer writer: %w", err)
	}

	comp, err := compactor.New(cfg)
	if err != nil {
		return Result{}, fmt.Errorf("driver: initializing compactor: %w", err)
	}

	globalLine := 0

	for g := 0; g < numGroups; g++ {
		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("driver: canceled before group %d: %w", g, ctx.Err())
		default:
		}

		n, err := runGroup(log, cfg, g, totalChunks[g], dict, sink, vbw, comp, globalLine)
		if err != nil {
			return Result{}, fmt.Errorf("driver: processing group %d: %w", g, err)
		}
		globalLine = n

		report(progressCh, Progress{Stage: StageGroup, Total: numGroups, Completed: g + 1})
		log.WithFields(logrus.Fields{
			"group":     g,
			"lineTotal": humanize.Comma(int64(globalLine)),
		}).Info("group complete")
	}

	if err := vbw.Finalize(); err != nil {
		return Result{}, fmt.Errorf("driver: finalizing variable buffer: %w", err)
	}
	if err := sink.Finalize(); err != nil {
		return Result{}, fmt.Errorf("driver: finalizing columnar sink: %w", err)
	}
	if err := comp.Close(); err != nil {
		return Result{}, fmt.Errorf("driver: closing compactor outputs: %w", err)
	}

	return Result{
		GlobalLineCount: globalLine,
		DictionarySize:  len(dict),
		BlockOffsets:    vbw.Offsets(),
	}, nil
}

// runGroup streams one group's rows through the sink/varbuffer/compactor
// and returns the updated global line number.
func runGroup(
	log *logrus.Logger,
	cfg config.Config,
	group, total int,
	dict dictionary.Dictionary,
	sink *columnar.Sink,
	vbw *varbuffer.Writer,
	comp *compactor.Compactor,
	globalLine int,
) (int, error) {
	info, err := metadata.Load(group, total)
	if err != nil {
		return 0, fmt.Errorf("loading metadata: %w", err)
	}

	eidToVariables := make(map[int][]variable.Key)
	touchedTypesSet := map[int]struct{}{0: {}}
	for key, t := range info.VariableToType {
		eidToVariables[key.Eid] = append(eidToVariables[key.Eid], key)
		touchedTypesSet[t] = struct{}{}
	}
	for eid := range eidToVariables {
		sort.Slice(eidToVariables[eid], func(i, j int) bool {
			return eidToVariables[eid][i].Less(eidToVariables[eid][j])
		})
	}
	touchedTypes := make([]int, 0, len(touchedTypesSet))
	for t := range touchedTypesSet {
		touchedTypes = append(touchedTypes, t)
	}
	sort.Ints(touchedTypes)

	if err := sink.AppendGroupRows(group); err != nil {
		return 0, fmt.Errorf("appending columnar rows: %w", err)
	}

	for c := 0; c < total; c++ {
		readers, err := openVariableReaders(group, c, info.ChunkVariables[c])
		if err != nil {
			return 0, fmt.Errorf("chunk %d: %w", c, err)
		}

		eids, err := readEidSequence(group, c)
		if err != nil {
			closeAll(readers)
			return 0, fmt.Errorf("chunk %d: %w", c, err)
		}

		for _, eid := range eids {
			// spec.md §4.8's critical ordering: the block-boundary check
			// and its flush are implicit in vbw.EndRow() below, which is
			// called for every row (including skipped ones, so the
			// side-channel stays row-aligned with the columnar archive
			// and the compactor's row-group ids). Because EndRow fires
			// immediately after the row that completes a block — and
			// before any cell of the next row is pushed — block
			// boundaries always land exactly on row-group boundaries.
			vars, ok := eidToVariables[eid]
			if eid < 0 || !ok {
				if err := vbw.EndRow(); err != nil {
					closeAll(readers)
					return 0, fmt.Errorf("chunk %d: ending row: %w", c, err)
				}
				globalLine++
				continue
			}

			rowGroupID := globalLine / cfg.RowGroupSize
			for _, v := range vars {
				item, rerr := readers[v].read()
				if rerr != nil {
					closeAll(readers)
					return 0, fmt.Errorf("chunk %d: reading variable %s: %w", c, v, rerr)
				}
				vbw.PushCell(item)

				t := info.VariableToType[v]
				if dict.Contains(item) {
					t = 0
				}
				comp.Record(t, item, rowGroupID)
			}
			if err := vbw.EndRow(); err != nil {
				closeAll(readers)
				return 0, fmt.Errorf("chunk %d: ending row: %w", c, err)
			}
			globalLine++
		}

		if c < total-1 {
			for _, t := range touchedTypes {
				if err := comp.MaybeFlush(t, false); err != nil {
					closeAll(readers)
					return 0, fmt.Errorf("chunk %d: flushing type %d: %w", c, t, err)
				}
			}
		}

		closeAll(readers)
	}

	if err := comp.FinalizeGroup(touchedTypes); err != nil {
		return 0, fmt.Errorf("finalizing group %d: %w", group, err)
	}

	log.WithFields(logrus.Fields{"group": group, "chunks": total}).Debug("group streamed")
	return globalLine, nil
}

type variableReader struct {
	f       *os.File
	scanner *bufio.Scanner
}

func (r *variableReader) read() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("unexpected end of variable stream")
	}
	return r.scanner.Text(), nil
}

func openVariableReaders(group, chunk int, vars map[variable.Key]struct{}) (map[variable.Key]*variableReader, error) {
	readers := make(map[variable.Key]*variableReader, len(vars))
	for v := range vars {
		path := pathlayout.VariableFile(group, chunk, v)
		f, err := os.Open(path)
		if err != nil {
			closeAll(readers)
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		readers[v] = &variableReader{f: f, scanner: scanner}
	}
	return readers, nil
}

func closeAll(readers map[variable.Key]*variableReader) {
	for _, r := range readers {
		r.f.Close()
	}
}

func readEidSequence(group, chunk int) ([]int, error) {
	path := pathlayout.ChunkEidFile(group, chunk)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var eids []int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var v int
		if _, err := fmt.Sscanf(scanner.Text(), "%d", &v); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		eids = append(eids, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return eids, nil
}

func countChunks(group int) int {
	n := 0
	for {
		if _, err := os.Stat(pathlayout.ChunkEidFile(group, n)); err != nil {
			break
		}
		n++
	}
	return n
}

func report(ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}
