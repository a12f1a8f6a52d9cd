package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/speakeasy-api/openapi/sequencedmap"

	"github.com/infosec-us-team/ibb/internal/stack"
)

const (
	// DefaultMaxDepth bounds container nesting accepted by Decode.
	DefaultMaxDepth = 10000

	// HardMaxDepth is the ceiling applied when no limit, or a larger one, is
	// requested.
	HardMaxDepth = 100000
)

var (
	// ErrMalformed indicates the input is not a single well-formed JSON document.
	ErrMalformed = errors.New("malformed JSON document")

	// ErrTooDeep indicates the document nests containers deeper than allowed.
	ErrTooDeep = errors.New("document too deep")
)

type decodeOptions struct {
	maxDepth int
}

// DecodeOption configures Decode and Parse.
type DecodeOption func(*decodeOptions)

// WithMaxDepth limits container nesting. Zero, negative or anything above
// HardMaxDepth selects HardMaxDepth.
func WithMaxDepth(depth int) DecodeOption {
	return func(o *decodeOptions) {
		if depth <= 0 || depth > HardMaxDepth {
			depth = HardMaxDepth
		}
		o.maxDepth = depth
	}
}

// container is an object or array still being filled.
type container struct {
	members *sequencedmap.Map[string, Value]
	elems   []Value
	isObj   bool
	key     string
	haveKey bool
}

func (c *container) value() Value {
	if c.isObj {
		return Value{kind: KindObject, obj: c.members}
	}
	return Value{kind: KindArray, arr: c.elems}
}

// Decode reads exactly one JSON document from r. The tree is built without
// recursion, so input depth only costs heap.
func Decode(r io.Reader, opts ...DecodeOption) (Value, error) {
	o := decodeOptions{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	doc, err := decodeDocument(dec, o.maxDepth)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return Value{}, fmt.Errorf("%w: unexpected data after top-level value", ErrMalformed)
		}
		return Value{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return doc, nil
}

// Parse decodes a JSON document held in memory.
func Parse(data []byte, opts ...DecodeOption) (Value, error) {
	return Decode(bytes.NewReader(data), opts...)
}

func decodeDocument(dec *json.Decoder, maxDepth int) (Value, error) {
	open := stack.NewWithCapacity[*container](16)

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if open.IsEmpty() {
					return Value{}, fmt.Errorf("%w: empty document", ErrMalformed)
				}
				return Value{}, fmt.Errorf("%w: unexpected end of input", ErrMalformed)
			}
			return Value{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		var scalar Value
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				if open.Size() >= maxDepth {
					return Value{}, fmt.Errorf("%w: nesting exceeds %d levels", ErrTooDeep, maxDepth)
				}
				c := &container{isObj: t == '{'}
				if c.isObj {
					c.members = sequencedmap.New[string, Value]()
				}
				open.Push(c)
				continue
			default:
				c, _ := open.Pop()
				scalar = c.value()
			}
		case string:
			if top, ok := open.Peek(); ok && top.isObj && !top.haveKey {
				top.key = t
				top.haveKey = true
				continue
			}
			scalar = String(t)
		case json.Number:
			scalar = Number(t)
		case bool:
			scalar = Bool(t)
		case nil:
			scalar = Null()
		default:
			return Value{}, fmt.Errorf("%w: unexpected token %v", ErrMalformed, tok)
		}

		parent, ok := open.Peek()
		if !ok {
			return scalar, nil
		}
		if parent.isObj {
			parent.members.Set(parent.key, scalar)
			parent.haveKey = false
		} else {
			parent.elems = append(parent.elems, scalar)
		}
	}
}

// UnmarshalJSON decodes data into v with the default depth limit.
func (v *Value) UnmarshalJSON(data []byte) error {
	doc, err := Parse(data)
	if err != nil {
		return err
	}
	*v = doc
	return nil
}

// MarshalJSON renders v as compact JSON keeping object order.
func (v Value) MarshalJSON() ([]byte, error) {
	return appendCompact(nil, v), nil
}
