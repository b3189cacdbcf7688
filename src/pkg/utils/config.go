package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Unmarshal decodes the YAML file at path into value. Fields absent from the
// file keep whatever value already holds, so callers pass pre-filled defaults.
func Unmarshal(value any, path string) (retErr error) {
	file, openFileErr := os.Open(path)
	if openFileErr != nil {
		return openFileErr
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			if retErr == nil {
				// Return close error if no other error
				retErr = closeErr
			} else {
				retErr = errors.Join(retErr, closeErr)
			}
		}
	}()

	fileContents, readFileErr := io.ReadAll(file)
	if readFileErr != nil {
		return readFileErr
	}

	decoder := yaml.NewDecoder(bytes.NewReader(fileContents))
	decoder.KnownFields(true)
	if decodeErr := decoder.Decode(value); decodeErr != nil {
		if errors.Is(decodeErr, io.EOF) {
			// Empty file, keep defaults
			return nil
		}
		return fmt.Errorf("failed to parse %s: %w", path, decodeErr)
	}

	return nil
}
