package configtypes

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// MapStringString may be set as a map, as a list of key/value objects or as
// a JSON object string from environment. Values may reference environment
// variables with ${CHATHUB_VAR_*} placeholders.
type MapStringString map[string]string

var customEnvVarRegex = regexp.MustCompile(`\$\{(CHATHUB_VAR_[^}]+)}`)

func expandEnvVars(m map[string]string) error {
	for key, val := range m {
		for _, match := range customEnvVarRegex.FindAllStringSubmatch(val, -1) {
			if _, ok := os.LookupEnv(match[1]); !ok {
				return fmt.Errorf("environment variable %q not found", match[1])
			}
		}
		m[key] = customEnvVarRegex.ReplaceAllStringFunc(val, func(match string) string {
			return os.Getenv(customEnvVarRegex.FindStringSubmatch(match)[1])
		})
	}
	return nil
}

// Decode from JSON object string.
func (s *MapStringString) Decode(value string) error {
	var m map[string]string
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return err
	}
	if err := expandEnvVars(m); err != nil {
		return err
	}
	*s = m
	return nil
}

// StringToMapStringStringHookFunc decodes MapStringString.
func StringToMapStringStringHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(MapStringString{}) {
			return data, nil
		}
		m := make(map[string]string)
		switch v := data.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return MapStringString(m), nil
			}
			var res MapStringString
			if err := res.Decode(v); err != nil {
				return nil, err
			}
			return res, nil
		case map[string]string:
			for key, value := range v {
				m[key] = value
			}
		case map[string]any:
			for key, value := range v {
				strValue, ok := value.(string)
				if !ok {
					return nil, fmt.Errorf("expected string value for key %q, got %T", key, value)
				}
				m[key] = strValue
			}
		case []any:
			for i, item := range v {
				kv, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("expected map for element %d, got %T", i, item)
				}
				key, ok := kv["key"].(string)
				if !ok {
					return nil, fmt.Errorf("missing or invalid key in element %d", i)
				}
				if _, exists := m[key]; exists {
					return nil, fmt.Errorf("duplicate key %q at element %d", key, i)
				}
				value, ok := kv["value"].(string)
				if !ok {
					return nil, fmt.Errorf("missing or invalid value in element %d", i)
				}
				m[key] = value
			}
		default:
			return nil, fmt.Errorf("unsupported type %T for MapStringString", data)
		}
		if err := expandEnvVars(m); err != nil {
			return nil, err
		}
		return MapStringString(m), nil
	}
}
