package erddap

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Constraints is an insertion-ordered mapping from constraint keys to values.
// A key encodes a variable name plus a comparison operator, e.g. "time>=" or
// "latitude<=", or the griddap step pseudo-constraint "time_step". Iteration
// order is the order keys were first set; the URL formatter preserves it.
type Constraints struct {
	keys   []string
	values map[string]any
}

// NewConstraints returns constraints populated from key/value pairs in the
// order given.
func NewConstraints(pairs ...any) *Constraints {
	if len(pairs)%2 != 0 {
		panic("erddap: NewConstraints requires key/value pairs")
	}
	c := &Constraints{values: make(map[string]any)}
	for i := 0; i < len(pairs); i += 2 {
		c.Set(pairs[i].(string), pairs[i+1])
	}
	return c
}

// Set stores value under key, appending the key on first use and keeping its
// original position on overwrite.
func (c *Constraints) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Get returns the value stored under key.
func (c *Constraints) Get(key string) (any, bool) {
	if c == nil || c.values == nil {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

// Delete removes key, preserving the order of the remaining keys.
func (c *Constraints) Delete(key string) {
	if c == nil || c.values == nil {
		return
	}
	if _, ok := c.values[key]; !ok {
		return
	}
	delete(c.values, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is a copy.
func (c *Constraints) Keys() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of entries.
func (c *Constraints) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Clone returns a value copy that shares no state with c.
func (c *Constraints) Clone() *Constraints {
	if c == nil {
		return nil
	}
	out := &Constraints{
		keys:   make([]string, len(c.keys)),
		values: make(map[string]any, len(c.values)),
	}
	copy(out.keys, c.keys)
	for k, v := range c.values {
		out.values[k] = v
	}
	return out
}

// IsRelativeExpression reports whether value is an ERDDAP relative or
// server-side-computed expression, e.g. "now-7days" or "max(depth)-23".
// Such values must be passed through unquoted and undated.
func IsRelativeExpression(value any) bool {
	s := fmt.Sprint(value)
	for _, substring := range []string{"now", "min", "max"} {
		if strings.Contains(s, substring) {
			return true
		}
	}
	return false
}

// QuoteStringConstraints returns a copy of c with every string value that is
// not a relative expression wrapped in double quotes. ERDDAP requires the
// right-hand side of String variable constraints to be quoted.
func QuoteStringConstraints(c *Constraints) *Constraints {
	out := c.Clone()
	if out == nil {
		return nil
	}
	for _, k := range out.keys {
		if s, ok := out.values[k].(string); ok && !IsRelativeExpression(s) {
			out.values[k] = `"` + s + `"`
		}
	}
	return out
}

// FormatConstraintsURL serializes c as "&{key}{value}" fragments joined in
// insertion order, ready to append to a download URL.
func FormatConstraintsURL(c *Constraints) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, k := range c.keys {
		b.WriteString("&")
		b.WriteString(k)
		b.WriteString(formatValue(c.values[k]))
	}
	return b.String()
}

// formatValue renders a constraint value for URL insertion. Floats always
// carry a decimal point so they survive ERDDAP's type inference, integers
// never do, and times are rendered as epoch seconds.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case time.Time:
		return formatFloat(Timestamp(t))
	default:
		return fmt.Sprint(t)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
