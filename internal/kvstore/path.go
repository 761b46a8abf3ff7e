// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package kvstore

import (
	"errors"
	"fmt"
	"strings"
)

// Separator divides path segments.
const Separator = "/"

// ErrInvalidPath is returned for empty paths or segments containing the separator.
var ErrInvalidPath = errors.New("kvstore: invalid path")

// Join builds a path from segments. Every segment must be non-empty and
// must not contain the separator.
//
//	p, err := kvstore.Join("unique-users", "2026-10-19", visitorID)
func Join(segments ...string) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: no segments", ErrInvalidPath)
	}
	for i, seg := range segments {
		if seg == "" {
			return "", fmt.Errorf("%w: segment %d is empty", ErrInvalidPath, i)
		}
		if strings.Contains(seg, Separator) {
			return "", fmt.Errorf("%w: segment %q contains %q", ErrInvalidPath, seg, Separator)
		}
	}
	return strings.Join(segments, Separator), nil
}

// validatePath rejects empty paths, empty segments and leading or trailing separators.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	for _, seg := range strings.Split(path, Separator) {
		if seg == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return nil
}

// childPrefix returns the key prefix matching everything below path.
func childPrefix(path string) []byte {
	return []byte(path + Separator)
}
