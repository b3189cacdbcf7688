package utils

import (
	"os"
	"strings"
	"time"
)

// IsHidden reports whether name is a dot-file. Hidden entries inside the
// upload directory belong to the store itself and are never served or swept.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// HasHiddenSegment reports whether any element of a slash separated path is hidden.
func HasHiddenSegment(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if IsHidden(segment) {
			return true
		}
	}
	return false
}

func TouchFile(path string, modTime time.Time) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Chtimes(path, modTime, modTime)
}
