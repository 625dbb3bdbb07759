package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/oshokin/release-watcher/internal/domain/release"
)

// tomlVersionLine matches a bare `version = "..."` (or single-quoted) assignment.
var tomlVersionLine = regexp.MustCompile(`^(\s*version\s*=\s*)(?:"(?:[^"\\]|\\.)*"|'[^']*')`)

// rewriteTOMLVersion replaces the value of the first top-level version key.
// Keys inside tables are never touched.
func rewriteTOMLVersion(contents []byte, version string) ([]byte, error) {
	lines := bytes.SplitAfter(contents, []byte("\n"))

	for i, line := range lines {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("[")) {
			break
		}

		loc := tomlVersionLine.FindSubmatchIndex(line)
		if loc == nil {
			continue
		}

		valueStart := loc[3]
		quote := line[valueStart]

		replaced := make([]byte, 0, len(line)+len(version))
		replaced = append(replaced, line[:valueStart]...)
		replaced = append(replaced, quote)
		replaced = append(replaced, version...)
		replaced = append(replaced, quote)
		replaced = append(replaced, line[loc[1]:]...)
		lines[i] = replaced

		return bytes.Join(lines, nil), nil
	}

	return nil, fmt.Errorf("%w: no top-level version key", release.ErrParse)
}

// rewriteJSONVersion replaces the string value of the top-level "version" member.
func rewriteJSONVersion(contents []byte, version string) ([]byte, error) {
	depth := 0

	for i := 0; i < len(contents); i++ {
		switch contents[i] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case '"':
			end, err := jsonStringEnd(contents, i)
			if err != nil {
				return nil, err
			}

			if depth == 1 && string(contents[i+1:end]) == "version" {
				colon := skipJSONSpace(contents, end+1)
				if colon < len(contents) && contents[colon] == ':' {
					return replaceJSONValue(contents, skipJSONSpace(contents, colon+1), version)
				}
			}

			i = end
		}
	}

	return nil, fmt.Errorf("%w: no top-level version key", release.ErrParse)
}

func replaceJSONValue(contents []byte, start int, version string) ([]byte, error) {
	if start >= len(contents) || contents[start] != '"' {
		return nil, fmt.Errorf("%w: version is not a string", release.ErrParse)
	}

	end, err := jsonStringEnd(contents, start)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(version)
	if err != nil {
		return nil, fmt.Errorf("%w: encode version: %w", release.ErrParse, err)
	}

	out := make([]byte, 0, len(contents)+len(encoded))
	out = append(out, contents[:start]...)
	out = append(out, encoded...)
	out = append(out, contents[end+1:]...)

	return out, nil
}

// jsonStringEnd returns the index of the quote closing the string opened at start.
func jsonStringEnd(contents []byte, start int) (int, error) {
	for i := start + 1; i < len(contents); i++ {
		switch contents[i] {
		case '\\':
			i++
		case '"':
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: unterminated string", release.ErrParse)
}

func skipJSONSpace(contents []byte, i int) int {
	for i < len(contents) {
		switch contents[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return i
		}
	}

	return i
}
