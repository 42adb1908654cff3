package schema

import (
	"strconv"
	"strings"
	"unicode"
)

// NormalizeSessionName trims a user label and rejects empty or control-laden names.
func NormalizeSessionName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrInvalidName
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", ErrInvalidName
		}
	}
	return trimmed, nil
}

// ParseWindowID parses a decimal window identifier.
func ParseWindowID(raw string) (WindowID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, ErrInvalidRequest
	}
	return WindowID(id), nil
}
