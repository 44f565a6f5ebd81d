package unprotect

import (
	"errors"
	"fmt"
	"strings"
)

// errStopScan ends a segment scan early without reporting a failure.
var errStopScan = errors.New("stop scan")

// forwardedNodes extracts the for= node values from Forwarded header lines,
// in wire order. Elements without a for parameter are ignored. At most limit
// nodes are returned; truncated reports whether more were present.
//
// Parse failures wrap ErrInvalidForwardedHeader.
func forwardedNodes(values []string, limit int) (nodes []string, truncated bool, err error) {
	for _, value := range values {
		scanErr := scanForwardedSegments(value, ',', func(element string) error {
			node, hasFor, parseErr := parseForwardedElement(element)
			if parseErr != nil {
				return parseErr
			}
			if !hasFor {
				return nil
			}
			if len(nodes) == limit {
				truncated = true
				return errStopScan
			}

			nodes = append(nodes, node)
			return nil
		})
		if errors.Is(scanErr, errStopScan) {
			return nodes, true, nil
		}
		if scanErr != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrInvalidForwardedHeader, scanErr)
		}
	}

	return nodes, truncated, nil
}

// parseForwardedElement parses a single Forwarded element and returns its for
// parameter value when present.
//
// Parameter names are case-insensitive; a duplicate for parameter in the same
// element is an error.
func parseForwardedElement(element string) (node string, hasFor bool, err error) {
	err = scanForwardedSegments(element, ';', func(param string) error {
		key, value, ok := strings.Cut(param, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" {
			return fmt.Errorf("invalid forwarded parameter %q", param)
		}
		if value == "" {
			return fmt.Errorf("empty parameter value for %q", key)
		}

		if !strings.EqualFold(key, "for") {
			return nil
		}

		if hasFor {
			return fmt.Errorf("duplicate for parameter in element %q", element)
		}

		if value[0] == '"' {
			unquoted, unquoteErr := unquoteForwardedValue(value)
			if unquoteErr != nil {
				return unquoteErr
			}
			value = strings.TrimSpace(unquoted)
		}

		node = value
		hasFor = true
		return nil
	})
	if err != nil {
		return "", false, err
	}

	return node, hasFor, nil
}

// scanForwardedSegments splits value by delimiter while respecting quoted
// segments and escape sequences inside quoted strings.
func scanForwardedSegments(value string, delimiter byte, onSegment func(string) error) error {
	start := 0
	inQuotes := false
	escaped := false

	for i := 0; i <= len(value); i++ {
		if i == len(value) {
			if inQuotes {
				return fmt.Errorf("unterminated quoted string in %q", value)
			}
		} else {
			ch := value[i]

			if escaped {
				escaped = false
				continue
			}

			switch {
			case ch == '\\' && inQuotes:
				escaped = true
				continue
			case ch == '"':
				inQuotes = !inQuotes
				continue
			case ch != delimiter || inQuotes:
				continue
			}
		}

		if segment := strings.TrimSpace(value[start:i]); segment != "" {
			if err := onSegment(segment); err != nil {
				return err
			}
		}

		start = i + 1
	}

	return nil
}

// unquoteForwardedValue removes surrounding quotes from a quoted string and
// resolves backslash escapes.
func unquoteForwardedValue(value string) (string, error) {
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return "", fmt.Errorf("invalid quoted string %q", value)
	}

	inner := value[1 : len(value)-1]
	if strings.IndexByte(inner, '\\') == -1 {
		if strings.IndexByte(inner, '"') != -1 {
			return "", fmt.Errorf("unexpected quote in %q", value)
		}
		return inner, nil
	}

	var b strings.Builder
	b.Grow(len(inner))
	escaped := false

	for i := 0; i < len(inner); i++ {
		ch := inner[i]

		switch {
		case escaped:
			b.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			return "", fmt.Errorf("unexpected quote in %q", value)
		default:
			b.WriteByte(ch)
		}
	}

	if escaped {
		return "", fmt.Errorf("unterminated escape in %q", value)
	}

	return b.String(), nil
}
