// Package query finds values in a document by a sequence of field names.
//
// Resolve matches each name at any depth below the previous match: the first
// name is searched across the whole document, the second anywhere beneath a
// value matched by the first, and so on. Values matched by the last name are
// collected, with array matches spliced into the result.
//
// CollectTagged gathers the string values of a single field across a
// document, taking at most one per object.
//
// Both walk the document with an explicit work stack, so document depth never
// grows the goroutine stack.
package query

import (
	"errors"
	"fmt"

	"github.com/infosec-us-team/ibb/internal/stack"
	"github.com/infosec-us-team/ibb/internal/value"
)

// DefaultTag is the field CollectTagged looks for in a program listing.
const DefaultTag = "slug"

// ErrTooDeep is returned when traversal would exceed Resolver.MaxDepth.
var ErrTooDeep = errors.New("query: document too deep")

// Resolver runs queries under an optional depth limit.
type Resolver struct {
	// MaxDepth bounds how many containers deep traversal may descend.
	// Zero means unlimited.
	MaxDepth int
}

var unlimited Resolver

// Resolve returns every value reachable under path. The result is null when
// nothing matched and an array of matches otherwise.
func Resolve(doc value.Value, path []string) value.Value {
	result, _ := unlimited.Resolve(doc, path)
	return result
}

// CollectTagged returns the string values of tagName in document order.
func CollectTagged(doc value.Value, tagName string) []string {
	tags, _ := unlimited.CollectTagged(doc, tagName)
	return tags
}

type resolveFrame struct {
	node  value.Value
	pos   int // index into path of the name being searched for
	depth int // containers above node
	match bool
}

// Resolve is like the package-level Resolve but fails with ErrTooDeep when
// the walk enters a container nested deeper than r.MaxDepth.
func (r *Resolver) Resolve(doc value.Value, path []string) (value.Value, error) {
	if len(path) == 0 {
		return value.Null(), nil
	}

	var matches []value.Value
	terminal := len(path) - 1

	work := stack.NewWithCapacity[resolveFrame](64)
	work.Push(resolveFrame{node: doc})

	var children []resolveFrame
	for {
		f, ok := work.Pop()
		if !ok {
			break
		}

		if f.match {
			if f.node.Kind() == value.KindArray {
				for elem := range f.node.Elements() {
					matches = append(matches, elem)
				}
			} else {
				matches = append(matches, f.node)
			}
			continue
		}

		kind := f.node.Kind()
		if kind != value.KindObject && kind != value.KindArray {
			continue
		}

		level := f.depth + 1
		if err := r.checkDepth(level); err != nil {
			return value.Null(), err
		}

		children = children[:0]
		if kind == value.KindArray {
			for elem := range f.node.Elements() {
				children = append(children, resolveFrame{node: elem, pos: f.pos, depth: level})
			}
		} else {
			for key, member := range f.node.Members() {
				next := resolveFrame{node: member, pos: f.pos, depth: level}
				if key == path[f.pos] {
					if f.pos == terminal {
						next.match = true
					} else {
						next.pos++
					}
				}
				children = append(children, next)
			}
		}
		work.PushReversed(children...)
	}

	if len(matches) == 0 {
		return value.Null(), nil
	}
	return value.Array(matches...), nil
}

type tagFrame struct {
	node  value.Value
	depth int
}

// CollectTagged is like the package-level CollectTagged but fails with
// ErrTooDeep when the walk enters a container nested deeper than r.MaxDepth.
//
// An object holding tagName as a string contributes that string and is not
// searched further. Under any other value the tag is ignored and the object's
// members are searched.
func (r *Resolver) CollectTagged(doc value.Value, tagName string) ([]string, error) {
	tags := []string{}

	work := stack.NewWithCapacity[tagFrame](64)
	work.Push(tagFrame{node: doc})

	var children []tagFrame
	for {
		f, ok := work.Pop()
		if !ok {
			break
		}

		kind := f.node.Kind()
		if kind != value.KindObject && kind != value.KindArray {
			continue
		}

		level := f.depth + 1
		if err := r.checkDepth(level); err != nil {
			return nil, err
		}

		children = children[:0]
		if kind == value.KindArray {
			for elem := range f.node.Elements() {
				children = append(children, tagFrame{node: elem, depth: level})
			}
		} else {
			if tag, ok := f.node.Lookup(tagName); ok {
				if s, ok := tag.AsString(); ok {
					tags = append(tags, s)
					continue
				}
			}
			for _, member := range f.node.Members() {
				children = append(children, tagFrame{node: member, depth: level})
			}
		}
		work.PushReversed(children...)
	}

	return tags, nil
}

func (r *Resolver) checkDepth(level int) error {
	if r.MaxDepth > 0 && level > r.MaxDepth {
		return fmt.Errorf("%w: nesting exceeds %d levels", ErrTooDeep, r.MaxDepth)
	}
	return nil
}
