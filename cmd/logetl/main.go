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

// Command logetl is the CLI shell around the ETL engine: `etl <indexName>
// <numGroups>`. It owns argument validation, signal handling, progress
// rendering, and the process exit code; the engine itself (store/logetl/
// driver) never imports this package.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/marsupialtail/rottnest-etl/store/logetl/config"
	"github.com/marsupialtail/rottnest-etl/store/logetl/driver"
)

const usage = "usage: etl <indexName> <numGroups>"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	indexName := args[0]
	numGroups, err := strconv.Atoi(args[1])
	if err != nil || numGroups <= 0 {
		fmt.Fprintln(os.Stderr, usage)
		fmt.Fprintln(os.Stderr, "numGroups must be a positive integer")
		return 2
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("received interrupt, will stop at the next group boundary")
		cancel()
	}()

	progressCh := make(chan driver.Progress, 16)
	done := make(chan struct{})
	go renderProgress(progressCh, done)

	cfg := config.Default()
	result, err := driver.Run(ctx, log, cfg, indexName, numGroups, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		log.WithError(err).Error("etl run failed")
		return 1
	}

	color.Green("etl complete: %s rows, dictionary size %d, %d .maui blocks",
		humanize.Comma(int64(result.GlobalLineCount)), result.DictionarySize, len(result.BlockOffsets)-1)
	return 0
}

// renderProgress draws one mpb bar per driver stage, grounded on the
// progress-channel pattern the teacher threads through its archive builder
// (store/nbs/archive_build.go's `progress chan interface{}`), rendered here
// with real progress bars instead of printed strings.
func renderProgress(progressCh <-chan driver.Progress, done chan<- struct{}) {
	defer close(done)

	p := mpb.New(mpb.WithWidth(48))
	bars := make(map[string]*mpb.Bar)

	barFor := func(stage string, total int) *mpb.Bar {
		if b, ok := bars[stage]; ok {
			return b
		}
		b := p.AddBar(int64(total),
			mpb.PrependDecorators(decor.Name(stage)),
			mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
		)
		bars[stage] = b
		return b
	}

	completed := make(map[string]int)
	for msg := range progressCh {
		b := barFor(msg.Stage, msg.Total)
		delta := msg.Completed - completed[msg.Stage]
		if delta > 0 {
			b.IncrBy(delta)
			completed[msg.Stage] = msg.Completed
		}
	}

	for _, b := range bars {
		if !b.Completed() {
			b.Abort(true)
		}
	}
	p.Wait()
}
