package extract

import (
	"errors"
	"unicode/utf8"
)

// ParseText returns data verbatim. It fails when data is not valid UTF-8.
func ParseText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text: content is not valid UTF-8")
	}
	return string(data), nil
}
