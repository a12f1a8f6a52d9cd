package value

import (
	"io"
	"unicode/utf8"

	"github.com/infosec-us-team/ibb/internal/stack"
)

const (
	colorReset  = "\x1b[0m"
	nullColor   = "\x1b[90m"
	falseColor  = "\x1b[33m"
	trueColor   = "\x1b[33m"
	numberColor = "\x1b[36m"
	stringColor = "\x1b[32m"
	keyColor    = "\x1b[34;1m"
)

// Encoder writes values as JSON, one document per line.
type Encoder struct {
	w      io.Writer
	indent int
	color  bool
	buf    []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// SetIndent sets the number of spaces per nesting level. Zero selects compact
// output.
func (e *Encoder) SetIndent(n int) {
	e.indent = max(n, 0)
}

// SetColor toggles ANSI coloring of scalars and object keys.
func (e *Encoder) SetColor(on bool) {
	e.color = on
}

func (e *Encoder) Encode(v Value) error {
	p := printer{indent: e.indent, color: e.color, buf: e.buf[:0]}
	p.value(v)
	p.buf = append(p.buf, '\n')
	e.buf = p.buf

	_, err := e.w.Write(p.buf)
	return err
}

func appendCompact(buf []byte, v Value) []byte {
	p := printer{buf: buf}
	p.value(v)
	return p.buf
}

type printer struct {
	buf    []byte
	indent int
	color  bool
}

// printTask is either a value to print or, when closer is set, the end of a
// container.
type printTask struct {
	v      Value
	depth  int
	key    string
	keyed  bool
	nested bool
	comma  bool
	closer byte
}

func (p *printer) value(root Value) {
	work := stack.New[printTask]()
	work.Push(printTask{v: root})

	for {
		t, ok := work.Pop()
		if !ok {
			return
		}

		if t.closer != 0 {
			p.newline(t.depth)
			p.buf = append(p.buf, t.closer)
			continue
		}

		if t.comma {
			p.buf = append(p.buf, ',')
		}
		if t.nested {
			p.newline(t.depth)
		}
		if t.keyed {
			p.str(keyColor, t.key)
			p.buf = append(p.buf, ':')
			if p.indent > 0 {
				p.buf = append(p.buf, ' ')
			}
		}

		v := t.v
		switch v.kind {
		case KindNull:
			p.colored(nullColor, "null")
		case KindBool:
			if v.b {
				p.colored(trueColor, "true")
			} else {
				p.colored(falseColor, "false")
			}
		case KindNumber:
			p.colored(numberColor, v.s)
		case KindString:
			p.str(stringColor, v.s)
		case KindArray:
			if len(v.arr) == 0 {
				p.buf = append(p.buf, '[', ']')
				continue
			}
			p.buf = append(p.buf, '[')
			work.Push(printTask{depth: t.depth, closer: ']'})

			children := make([]printTask, len(v.arr))
			for i, elem := range v.arr {
				children[i] = printTask{v: elem, depth: t.depth + 1, nested: true, comma: i > 0}
			}
			work.PushReversed(children...)
		case KindObject:
			if v.Len() == 0 {
				p.buf = append(p.buf, '{', '}')
				continue
			}
			p.buf = append(p.buf, '{')
			work.Push(printTask{depth: t.depth, closer: '}'})

			children := make([]printTask, 0, v.Len())
			for key, member := range v.Members() {
				children = append(children, printTask{
					v:      member,
					depth:  t.depth + 1,
					key:    key,
					keyed:  true,
					nested: true,
					comma:  len(children) > 0,
				})
			}
			work.PushReversed(children...)
		}
	}
}

func (p *printer) newline(depth int) {
	if p.indent == 0 {
		return
	}
	p.buf = append(p.buf, '\n')
	for range depth * p.indent {
		p.buf = append(p.buf, ' ')
	}
}

func (p *printer) colored(color, literal string) {
	if p.color {
		p.buf = append(p.buf, color...)
	}
	p.buf = append(p.buf, literal...)
	if p.color {
		p.buf = append(p.buf, colorReset...)
	}
}

func (p *printer) str(color, s string) {
	if p.color {
		p.buf = append(p.buf, color...)
	}
	p.buf = appendQuoted(p.buf, s)
	if p.color {
		p.buf = append(p.buf, colorReset...)
	}
}

const hexDigits = "0123456789abcdef"

// appendQuoted escapes quotes, backslashes and control characters only.
// Invalid UTF-8 is replaced with U+FFFD.
func appendQuoted(buf []byte, s string) []byte {
	buf = append(buf, '"')
	start := 0
	for i := 0; i < len(s); {
		if b := s[i]; b < utf8.RuneSelf {
			if b >= 0x20 && b != '"' && b != '\\' {
				i++
				continue
			}
			buf = append(buf, s[start:i]...)
			switch b {
			case '"', '\\':
				buf = append(buf, '\\', b)
			case '\n':
				buf = append(buf, '\\', 'n')
			case '\r':
				buf = append(buf, '\\', 'r')
			case '\t':
				buf = append(buf, '\\', 't')
			case '\b':
				buf = append(buf, '\\', 'b')
			case '\f':
				buf = append(buf, '\\', 'f')
			default:
				buf = append(buf, '\\', 'u', '0', '0', hexDigits[b>>4], hexDigits[b&0xf])
			}
			i++
			start = i
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf = append(buf, s[start:i]...)
			buf = append(buf, "\ufffd"...)
			i += size
			start = i
			continue
		}
		i += size
	}
	buf = append(buf, s[start:]...)
	return append(buf, '"')
}
