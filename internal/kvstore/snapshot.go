// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package kvstore

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Snapshot is a point-in-time view of the immediate children of a path.
// Children that are themselves subtrees map to a nil value.
type Snapshot struct {
	Path     string
	Children map[string]json.RawMessage
}

// Len returns the number of immediate children.
func (s Snapshot) Len() int {
	return len(s.Children)
}

// Exists reports whether the path has any children.
func (s Snapshot) Exists() bool {
	return len(s.Children) > 0
}

// Keys returns child names in lexical order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Children))
	for k := range s.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode unmarshals the child named key into dst.
func (s Snapshot) Decode(key string, dst any) error {
	raw, ok := s.Children[key]
	if !ok || raw == nil {
		return fmt.Errorf("kvstore: %s/%s has no value", s.Path, key)
	}
	return json.Unmarshal(raw, dst)
}
