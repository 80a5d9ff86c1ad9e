// Package plug is the built-in stage library: envelope stamps, body
// serialization, logging, retries, concurrency and rate limits, and error
// boundaries, each implemented as a goplug.Plug.
//
// Every plug here accepts its options in native Go form and, where the
// option values are plain data, as the map[string]any a configuration file
// produces. Importing the package registers the config-assemblable plugs
// with the default registry under their snake_case names, so pipelines can
// reference them as strings:
//
//	b := goplug.NewBuilder("outgoing")
//	b.Use("created_by", "myapp")
//	b.Use("message_id")
//	b.Use("format", "application/json")
//	b.Use("encode", "gzip")
package plug

import (
	"fmt"
	"time"
)

// stringOpt accepts a bare string, nil, or a map carrying the string under
// key. Nil yields the empty string; the caller decides whether that is
// allowed.
func stringOpt(opts any, key string) (string, error) {
	switch o := opts.(type) {
	case nil:
		return "", nil
	case string:
		return o, nil
	case map[string]any:
		v, ok := o[key]
		if !ok {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("option %q: want string, got %T", key, v)
		}
		return s, nil
	default:
		return "", fmt.Errorf("want string or map with %q, got %T", key, opts)
	}
}

// intFrom reads an integer option, accepting the numeric types YAML and
// JSON decoders produce.
func intFrom(m map[string]any, key string, def int) (int, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("option %q: want integer, got %T", key, v)
	}
}

// durationFrom reads a duration option given as a time.Duration or a
// time.ParseDuration string like "250ms".
func durationFrom(m map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("option %q: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("option %q: want duration, got %T", key, v)
	}
}

// floatFrom reads a float option.
func floatFrom(m map[string]any, key string, def float64) (float64, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	switch f := v.(type) {
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	default:
		return 0, fmt.Errorf("option %q: want number, got %T", key, v)
	}
}
