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

// Package codec wraps the block compression primitive used by the
// variable-buffer side-channel. It is kept as a one-method interface so the
// rest of the engine never depends on gozstd directly.
package codec

import "github.com/dolthub/gozstd"

// Block is the block compression primitive: compress(bytes) -> bytes.
type Block interface {
	Compress(data []byte) ([]byte, error)
}

// ZSTD is the reference codec, backed by the same library the teacher uses
// for its own content-defined block compression.
type ZSTD struct{}

// Compress returns the ZSTD-compressed form of data. gozstd never returns an
// error from its Compress entry point; the error return exists so callers
// can swap in a codec that does fail (e.g. over a size limit) without a
// signature change.
func (ZSTD) Compress(data []byte) ([]byte, error) {
	return gozstd.Compress(nil, data), nil
}
