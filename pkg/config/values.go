package config

import (
	"fmt"
	"time"
)

// Stored values arrive as decoded JSON: numbers are float64, durations are
// strings such as "500ms" (plain numbers are nanoseconds).

func boolValue(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("invalid value type for %s: expected bool, got %T", key, v)
	}
	return b, nil
}

func intValue(key string, v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("invalid value for %s: %v is not an integer", key, n)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("invalid value type for %s: expected number, got %T", key, v)
	}
}

func floatValue(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("invalid value type for %s: expected number, got %T", key, v)
	}
}

func stringValue(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("invalid value type for %s: expected string, got %T", key, v)
	}
	return s, nil
}

func durationValue(key string, v any) (time.Duration, error) {
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string for %s: %w", key, err)
		}
		return parsed, nil
	case float64:
		return time.Duration(d), nil
	case int64:
		return time.Duration(d), nil
	case time.Duration:
		return d, nil
	default:
		return 0, fmt.Errorf("invalid value type for %s: expected string or number, got %T", key, v)
	}
}

func stringsValue(key string, v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s entry: expected string, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid value type for %s: expected list, got %T", key, v)
	}
}

func stringMapValue(key string, v any) (map[string]string, error) {
	switch m := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, item := range m {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s entry %q: expected string, got %T", key, k, item)
			}
			out[k] = s
		}
		return out, nil
	case nil:
		return map[string]string{}, nil
	default:
		return nil, fmt.Errorf("invalid value type for %s: expected object, got %T", key, v)
	}
}
