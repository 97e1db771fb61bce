package dag

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parameters is a raw parameter map from configuration.
type Parameters map[string]any

// Params resolves parameters of one operator, falling back to the
// pipeline's context parameters.
type Params struct {
	local  Parameters
	global Parameters
}

// NewParams creates a resolved parameter view.
func NewParams(local, global Parameters) Params {
	return Params{local: local, global: global}
}

// Raw returns the configured value.
func (p Params) Raw(key string) (any, bool) {
	if v, ok := p.local[key]; ok && v != nil {
		return v, true
	}
	if v, ok := p.global[key]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// Lookup returns the value as a string.
func (p Params) Lookup(key string) (string, bool) {
	v, ok := p.Raw(key)
	if !ok {
		return "", false
	}
	if s, isString := v.(string); isString {
		return s, true
	}
	return fmt.Sprint(v), true
}

// String returns the value or def.
func (p Params) String(key, def string) string {
	if s, ok := p.Lookup(key); ok {
		return s
	}
	return def
}

// Require returns the value or a missing-parameter error.
func (p Params) Require(key string) (string, error) {
	s, ok := p.Lookup(key)
	if !ok || s == "" {
		return "", configError(ErrMissingParameter, "parameter %q is required", key).WithDetail("parameter", key)
	}
	return s, nil
}

// Int returns the value as an int or def.
func (p Params) Int(key string, def int) (int, error) {
	return parse(p, key, def, strconv.Atoi)
}

// Float returns the value as a float64 or def.
func (p Params) Float(key string, def float64) (float64, error) {
	return parse(p, key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// Bool returns the value as a bool or def.
func (p Params) Bool(key string, def bool) (bool, error) {
	return parse(p, key, def, strconv.ParseBool)
}

// Duration returns the value as a duration or def.
func (p Params) Duration(key string, def time.Duration) (time.Duration, error) {
	return parse(p, key, def, time.ParseDuration)
}

// Size returns a byte size such as "512KB", "16MB" or "1GB", or def.
func (p Params) Size(key string, def int64) (int64, error) {
	return parse(p, key, def, parseSize)
}

// List returns a list value. Strings are split on commas.
func (p Params) List(key string) []string {
	v, ok := p.Raw(key)
	if !ok {
		return nil
	}
	var out []string
	switch x := v.(type) {
	case []any:
		for _, it := range x {
			out = append(out, strings.TrimSpace(fmt.Sprint(it)))
		}
	case []string:
		out = append(out, x...)
	default:
		for _, it := range strings.Split(fmt.Sprint(x), ",") {
			if it = strings.TrimSpace(it); it != "" {
				out = append(out, it)
			}
		}
	}
	return out
}

func parse[T any](p Params, key string, def T, conv func(string) (T, error)) (T, error) {
	s, ok := p.Lookup(key)
	if !ok || s == "" {
		return def, nil
	}
	v, err := conv(s)
	if err != nil {
		return def, configError(ErrInvalidParameter, "parameter %q: %v", key, err).WithDetail("parameter", key)
	}
	return v, nil
}

func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	var multiplier int64 = 1
	for _, unit := range []struct {
		suffix string
		bytes  int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.bytes
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * multiplier, nil
}
