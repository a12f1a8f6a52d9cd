// Package output renders query results for the terminal.
package output

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/infosec-us-team/ibb/internal/value"
)

var (
	ErrUnknownFormat    = errors.New("unknown output format")
	ErrUnknownTagFormat = errors.New("unknown tags format")
)

// Format selects how a document or query result is written.
type Format int

const (
	// FormatAuto defers to the caller's default for the current mode.
	FormatAuto Format = iota
	FormatCompact
	FormatPretty
	FormatYAML
)

// ParseFormat accepts "", "auto", "compact", "json", "pretty" and "yaml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "compact", "json":
		return FormatCompact, nil
	case "pretty":
		return FormatPretty, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatAuto, fmt.Errorf("%w: %q (want auto, compact, pretty or yaml)", ErrUnknownFormat, s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatCompact:
		return "compact"
	case FormatPretty:
		return "pretty"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// Or returns fallback when f is FormatAuto.
func (f Format) Or(fallback Format) Format {
	if f == FormatAuto {
		return fallback
	}
	return f
}

// WriteValue writes v followed by a newline. Color applies to JSON formats
// only. FormatAuto is written compact.
func WriteValue(w io.Writer, v value.Value, format Format, color bool) error {
	switch format {
	case FormatYAML:
		return writeYAML(w, v)
	case FormatPretty:
		enc := value.NewEncoder(w)
		enc.SetIndent(2)
		enc.SetColor(color)
		return enc.Encode(v)
	case FormatAuto, FormatCompact:
		enc := value.NewEncoder(w)
		enc.SetColor(color)
		return enc.Encode(v)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
}

func writeYAML(w io.Writer, v value.Value) error {
	payload, err := yaml.Marshal(yamlValue(v))
	if err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}

	_, err = w.Write(payload)
	return err
}

// yamlValue maps objects to yaml.MapSlice so key order survives.
func yamlValue(v value.Value) any {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindNumber:
		n, _ := v.AsNumber()
		return yamlNumber(n)
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindArray:
		out := make([]any, 0, v.Len())
		for elem := range v.Elements() {
			out = append(out, yamlValue(elem))
		}
		return out
	case value.KindObject:
		out := make(yaml.MapSlice, 0, v.Len())
		for key, member := range v.Members() {
			out = append(out, yaml.MapItem{Key: key, Value: yamlValue(member)})
		}
		return out
	default:
		return nil
	}
}

// yamlNumber writes the decoded literal unchanged, so integers beyond 64 bits
// and long fractions keep every digit.
type yamlNumber string

func (n yamlNumber) MarshalYAML() ([]byte, error) {
	return []byte(n), nil
}

// TagFormat selects how collected tags are written.
type TagFormat int

const (
	// TagsList prints a bracketed, comma separated list of quoted tags.
	TagsList TagFormat = iota
	// TagsLines prints one raw tag per line.
	TagsLines
	// TagsJSON prints a compact JSON array.
	TagsJSON
)

// ParseTagFormat accepts "", "list", "lines" and "json".
func ParseTagFormat(s string) (TagFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "list":
		return TagsList, nil
	case "lines":
		return TagsLines, nil
	case "json":
		return TagsJSON, nil
	default:
		return TagsList, fmt.Errorf("%w: %q (want list, lines or json)", ErrUnknownTagFormat, s)
	}
}

func (f TagFormat) String() string {
	switch f {
	case TagsList:
		return "list"
	case TagsLines:
		return "lines"
	case TagsJSON:
		return "json"
	default:
		return "unknown"
	}
}

func WriteTags(w io.Writer, tags []string, format TagFormat) error {
	switch format {
	case TagsJSON:
		return value.NewEncoder(w).Encode(value.Strings(tags...))
	case TagsLines:
		var b strings.Builder
		for _, tag := range tags {
			b.WriteString(tag)
			b.WriteByte('\n')
		}
		_, err := io.WriteString(w, b.String())
		return err
	case TagsList:
		var b strings.Builder
		b.WriteByte('[')
		for i, tag := range tags {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(tag))
		}
		b.WriteString("]\n")
		_, err := io.WriteString(w, b.String())
		return err
	default:
		return fmt.Errorf("%w: %d", ErrUnknownTagFormat, format)
	}
}
