package images

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDataURI decodes a "<metadata>,<base64>" payload such as a data URI.
// Only the first comma separates; the metadata part is ignored.
func DecodeDataURI(payload string) ([]byte, error) {
	_, data, found := strings.Cut(payload, ",")
	if !found {
		return nil, ErrMissingSeparator
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return decoded, nil
}
