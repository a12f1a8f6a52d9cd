// Package value models JSON documents as immutable values.
//
// A Value is one of null, bool, number, string, object or array. Objects keep
// their members in insertion order so that traversal and output are
// deterministic. Values are never mutated after construction: constructors copy
// their inputs and accessors hand out copies or iterators.
package value

import (
	"encoding/json"
	"iter"
	"math"
	"slices"
	"strconv"

	"github.com/speakeasy-api/openapi/sequencedmap"

	"github.com/infosec-us-team/ibb/internal/stack"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is an immutable JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	s    string // string contents, or the literal text of a number
	obj  *sequencedmap.Map[string, Value]
	arr  []Value
}

// Member is a single object entry used to build objects.
type Member struct {
	Key   string
	Value Value
}

// Field is shorthand for Member{Key: key, Value: v}.
func Field(key string, v Value) Member {
	return Member{Key: key, Value: v}
}

func Null() Value {
	return Value{}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number keeps n's literal text so it is written back exactly as read.
func Number(n json.Number) Value {
	return Value{kind: KindNumber, s: n.String()}
}

func Int(i int64) Value {
	return Value{kind: KindNumber, s: strconv.FormatInt(i, 10)}
}

func Float(f float64) Value {
	return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'g', -1, 64)}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Array returns an array holding a copy of vs.
func Array(vs ...Value) Value {
	return Value{kind: KindArray, arr: slices.Clone(vs)}
}

// Strings returns an array of string values.
func Strings(ss ...string) Value {
	arr := make([]Value, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return Value{kind: KindArray, arr: arr}
}

// Object builds an object from members in order. A repeated key keeps its
// first position and takes the last value.
func Object(members ...Member) Value {
	m := sequencedmap.New[string, Value]()
	for _, member := range members {
		m.Set(member.Key, member.Value)
	}
	return Value{kind: KindObject, obj: m}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsNumber() (json.Number, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return json.Number(v.s), true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Len reports the number of elements of an array or members of an object.
// It is zero for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		if v.obj == nil {
			return 0
		}
		return v.obj.Len()
	default:
		return 0
	}
}

// Elements iterates over array elements in order.
func (v Value) Elements() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		if v.kind != KindArray {
			return
		}
		for _, elem := range v.arr {
			if !yield(elem) {
				return
			}
		}
	}
}

// Members iterates over object members in insertion order.
func (v Value) Members() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if v.kind != KindObject || v.obj == nil {
			return
		}
		for key, member := range v.obj.All() {
			if !yield(key, member) {
				return
			}
		}
	}
}

// Lookup returns the member stored under key.
func (v Value) Lookup(key string) (Value, bool) {
	if v.kind != KindObject || v.obj == nil {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Interface converts v to plain Go values: nil, bool, json.Number, string,
// map[string]any and []any. Object order is lost.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return json.Number(v.s)
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, elem := range v.arr {
			out[i] = elem.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, v.Len())
		for key, member := range v.Members() {
			out[key] = member.Interface()
		}
		return out
	default:
		return nil
	}
}

// String renders v as compact JSON.
func (v Value) String() string {
	return string(appendCompact(nil, v))
}

// Equal reports structural equality. Object member order is ignored and
// numbers compare by value when their literal text differs.
func (v Value) Equal(other Value) bool {
	type pair struct{ a, b Value }

	work := stack.New[pair]()
	work.Push(pair{v, other})

	for {
		p, ok := work.Pop()
		if !ok {
			return true
		}

		a, b := p.a, p.b
		if a.kind != b.kind {
			return false
		}

		switch a.kind {
		case KindBool:
			if a.b != b.b {
				return false
			}
		case KindString:
			if a.s != b.s {
				return false
			}
		case KindNumber:
			if !numbersEqual(a.s, b.s) {
				return false
			}
		case KindArray:
			if len(a.arr) != len(b.arr) {
				return false
			}
			for i := range a.arr {
				work.Push(pair{a.arr[i], b.arr[i]})
			}
		case KindObject:
			if a.Len() != b.Len() {
				return false
			}
			for key, am := range a.Members() {
				bm, ok := b.Lookup(key)
				if !ok {
					return false
				}
				work.Push(pair{am, bm})
			}
		}
	}
}

func numbersEqual(a, b string) bool {
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil || math.IsNaN(fa) {
		return false
	}
	return fa == fb
}
