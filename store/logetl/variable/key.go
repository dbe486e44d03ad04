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

// Package variable represents the (eid, varIndex) pair that identifies a
// single parameter slot of a log template.
package variable

import (
	"fmt"
)

// Key is the (eid, varIndex) pair. The zero value is a valid key for
// (eid=0, varIndex=0); callers that need an "absent" sentinel should use a
// separate bool or pointer.
type Key struct {
	Eid      int
	VarIndex int
}

// String renders the canonical E<eid>_V<varIndex> form.
func (k Key) String() string {
	return fmt.Sprintf("E%d_V%d", k.Eid, k.VarIndex)
}

// Less implements the lexicographic total order on (Eid, VarIndex).
func (k Key) Less(other Key) bool {
	if k.Eid != other.Eid {
		return k.Eid < other.Eid
	}
	return k.VarIndex < other.VarIndex
}

// Parse reads the canonical "E<a>_V<b>" form produced by String.
func Parse(s string) (Key, error) {
	var a, b int
	n, err := fmt.Sscanf(s, "E%d_V%d", &a, &b)
	if err != nil || n != 2 {
		return Key{}, fmt.Errorf("variable: malformed key %q", s)
	}
	return Key{Eid: a, VarIndex: b}, nil
}
