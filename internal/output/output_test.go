package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/infosec-us-team/ibb/internal/value"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatAuto},
		{in: "auto", want: FormatAuto},
		{in: "compact", want: FormatCompact},
		{in: "JSON", want: FormatCompact},
		{in: " pretty ", want: FormatPretty},
		{in: "yaml", want: FormatYAML},
		{in: "yml", want: FormatYAML},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatOr(t *testing.T) {
	t.Parallel()

	if got := FormatAuto.Or(FormatPretty); got != FormatPretty {
		t.Errorf("FormatAuto.Or(FormatPretty) = %v", got)
	}
	if got := FormatYAML.Or(FormatPretty); got != FormatYAML {
		t.Errorf("FormatYAML.Or(FormatPretty) = %v", got)
	}
}

func sampleDocument(t *testing.T) value.Value {
	t.Helper()

	doc, err := value.Parse([]byte(`{"project":"Moonbeam","maxBounty":1000000,"ratio":0.5,"live":true,"kyc":null,"assets":[{"url":"u1"},{"url":"u2"}],"tags":[]}`))
	if err != nil {
		t.Fatalf("value.Parse() error = %v", err)
	}
	return doc
}

func TestWriteValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format Format
		want   string
	}{
		{
			name:   "compact",
			format: FormatCompact,
			want:   `{"project":"Moonbeam","maxBounty":1000000,"ratio":0.5,"live":true,"kyc":null,"assets":[{"url":"u1"},{"url":"u2"}],"tags":[]}` + "\n",
		},
		{
			name:   "auto is compact",
			format: FormatAuto,
			want:   `{"project":"Moonbeam","maxBounty":1000000,"ratio":0.5,"live":true,"kyc":null,"assets":[{"url":"u1"},{"url":"u2"}],"tags":[]}` + "\n",
		},
		{
			name:   "pretty",
			format: FormatPretty,
			want: `{
  "project": "Moonbeam",
  "maxBounty": 1000000,
  "ratio": 0.5,
  "live": true,
  "kyc": null,
  "assets": [
    {
      "url": "u1"
    },
    {
      "url": "u2"
    }
  ],
  "tags": []
}
`,
		},
		{
			name:   "yaml keeps key order",
			format: FormatYAML,
			want: `project: Moonbeam
maxBounty: 1000000
ratio: 0.5
live: true
kyc: null
assets:
- url: u1
- url: u2
tags: []
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if err := WriteValue(&buf, sampleDocument(t), tt.format, false); err != nil {
				t.Fatalf("WriteValue() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("WriteValue() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteValueKeepsNumberLiterals(t *testing.T) {
	t.Parallel()

	doc, err := value.Parse([]byte(`{"max":18446744073709551615,"huge":123456789012345678901234567890,"neg":-98765432109876543210,"frac":0.1000000000000000055511151231257827,"exp":1e400}`))
	if err != nil {
		t.Fatalf("value.Parse() error = %v", err)
	}

	tests := []struct {
		name   string
		format Format
		want   string
	}{
		{
			name:   "yaml",
			format: FormatYAML,
			want: `max: 18446744073709551615
huge: 123456789012345678901234567890
neg: -98765432109876543210
frac: 0.1000000000000000055511151231257827
exp: 1e400
`,
		},
		{
			name:   "compact",
			format: FormatCompact,
			want:   `{"max":18446744073709551615,"huge":123456789012345678901234567890,"neg":-98765432109876543210,"frac":0.1000000000000000055511151231257827,"exp":1e400}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if err := WriteValue(&buf, doc, tt.format, false); err != nil {
				t.Fatalf("WriteValue() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("WriteValue() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteValueNull(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteValue(&buf, value.Null(), FormatPretty, false); err != nil {
		t.Fatalf("WriteValue() error = %v", err)
	}
	if buf.String() != "null\n" {
		t.Errorf("WriteValue(null) = %q, want \"null\\n\"", buf.String())
	}
}

func TestWriteValueUnknownFormat(t *testing.T) {
	t.Parallel()

	err := WriteValue(&bytes.Buffer{}, value.Null(), Format(42), false)
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("WriteValue() error = %v, want ErrUnknownFormat", err)
	}
}

func TestWriteTags(t *testing.T) {
	t.Parallel()

	tags := []string{"0x", "moonbeamnetwork", `quo"te`}

	tests := []struct {
		name   string
		tags   []string
		format TagFormat
		want   string
	}{
		{name: "list", tags: tags, format: TagsList, want: `["0x", "moonbeamnetwork", "quo\"te"]` + "\n"},
		{name: "empty list", tags: []string{}, format: TagsList, want: "[]\n"},
		{name: "lines", tags: tags, format: TagsLines, want: "0x\nmoonbeamnetwork\nquo\"te\n"},
		{name: "empty lines", tags: nil, format: TagsLines, want: ""},
		{name: "json", tags: tags, format: TagsJSON, want: `["0x","moonbeamnetwork","quo\"te"]` + "\n"},
		{name: "empty json", tags: nil, format: TagsJSON, want: "[]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if err := WriteTags(&buf, tt.tags, tt.format); err != nil {
				t.Fatalf("WriteTags() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("WriteTags() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTagFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]TagFormat{"": TagsList, "list": TagsList, "Lines": TagsLines, "json": TagsJSON} {
		got, err := ParseTagFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseTagFormat(%q) = %v, %v, want %v", in, got, err, want)
		}
	}

	if _, err := ParseTagFormat("csv"); !errors.Is(err, ErrUnknownTagFormat) {
		t.Errorf("ParseTagFormat(\"csv\") error = %v, want ErrUnknownTagFormat", err)
	}
}
