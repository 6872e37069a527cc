package adapters

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/aleister1102/oerscout/internal/common"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a decoded JSON value as a tagged variant, used to walk embedded page
// state whose shape is not known in advance.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	Array  []Value
	Object map[string]Value
}

// ParseValue decodes JSON text into a Value.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Value{}, common.WrapError(err, "failed to decode JSON value")
	}
	return FromInterface(raw), nil
}

// FromInterface converts the output of encoding/json into a Value.
func FromInterface(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case float64:
		return Value{Kind: KindNumber, Number: t, Str: strconv.FormatFloat(t, 'f', -1, 64)}
	case json.Number:
		f, _ := t.Float64()
		return Value{Kind: KindNumber, Number: f, Str: t.String()}
	case string:
		return Value{Kind: KindString, Str: t}
	case []interface{}:
		arr := make([]Value, 0, len(t))
		for _, item := range t {
			arr = append(arr, FromInterface(item))
		}
		return Value{Kind: KindArray, Array: arr}
	case map[string]interface{}:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			obj[k] = FromInterface(item)
		}
		return Value{Kind: KindObject, Object: obj}
	}
	return Value{Kind: KindNull}
}

// Get returns the member key of an object.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	child, ok := v.Object[key]
	return child, ok
}

// Path follows a chain of object keys.
func (v Value) Path(keys ...string) (Value, bool) {
	cur := v
	for _, k := range keys {
		next, ok := cur.Get(k)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// String returns the text of a string or number value, "" otherwise.
func (v Value) String() string {
	switch v.Kind {
	case KindString, KindNumber:
		return v.Str
	}
	return ""
}

// StringField returns the first non-empty string member among keys.
func (v Value) StringField(keys ...string) string {
	for _, k := range keys {
		if child, ok := v.Get(k); ok {
			if s := strings.TrimSpace(child.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// IsArray reports whether v is an array.
func (v Value) IsArray() bool {
	return v.Kind == KindArray
}

// HasTreeContents reports whether v is an object holding tree.contents as an array.
func HasTreeContents(v Value) bool {
	contents, ok := v.Path("tree", "contents")
	return ok && contents.IsArray()
}

// FindObject searches v breadth-first for an object satisfying match, descending at
// most maxDepth levels below v. Object keys are visited in sorted order so the
// result is deterministic.
func FindObject(v Value, match func(Value) bool, maxDepth int) (Value, bool) {
	type item struct {
		v     Value
		depth int
	}
	queue := []item{{v: v}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.v.Kind == KindObject && match(cur.v) {
			return cur.v, true
		}
		if cur.depth >= maxDepth {
			continue
		}
		switch cur.v.Kind {
		case KindObject:
			keys := make([]string, 0, len(cur.v.Object))
			for k := range cur.v.Object {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				queue = append(queue, item{v: cur.v.Object[k], depth: cur.depth + 1})
			}
		case KindArray:
			for _, child := range cur.v.Array {
				queue = append(queue, item{v: child, depth: cur.depth + 1})
			}
		}
	}
	return Value{}, false
}

// ExtractAssignedObject finds marker in src and returns the balanced JSON object that
// follows it. String literals are skipped so braces inside them do not count. A
// missing marker wraps common.ErrNotFound; a missing or unbalanced object wraps
// common.ErrInvalidInput.
func ExtractAssignedObject(src, marker string) (string, error) {
	idx := strings.Index(src, marker)
	if idx < 0 {
		return "", common.WrapErrorf(common.ErrNotFound, "state marker %q", marker)
	}
	rest := src[idx+len(marker):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return "", common.WrapErrorf(common.ErrInvalidInput, "no JSON object after %q", marker)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		c := rest[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[start : i+1], nil
			}
		}
	}
	return "", common.WrapErrorf(common.ErrInvalidInput, "unterminated JSON object after %q", marker)
}
