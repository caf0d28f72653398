package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/windi-messenger/chathub/internal/configtypes"
)

// Types decoded from a single value rather than walked as nested sections.
var leafTypes = map[reflect.Type]struct{}{
	reflect.TypeOf(configtypes.Duration(0)):       {},
	reflect.TypeOf(configtypes.PEMData("")):       {},
	reflect.TypeOf(configtypes.MapStringString{}): {},
}

// EnvName of config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// bindEnv walks Config fields by mapstructure tags, registers defaults from
// default tags and binds every leaf key to its environment variable.
func bindEnv(v *viper.Viper, typ reflect.Type) (map[string]string, error) {
	known := make(map[string]string)
	if err := walkKeys(typ, "", func(key string, field reflect.StructField) error {
		if def, ok := field.Tag.Lookup("default"); ok {
			v.SetDefault(key, def)
		}
		envName := EnvName(key)
		if err := v.BindEnv(key, envName); err != nil {
			return fmt.Errorf("error binding env %s: %w", envName, err)
		}
		known[envName] = key
		return nil
	}); err != nil {
		return nil, err
	}
	return known, nil
}

func walkKeys(typ reflect.Type, prefix string, fn func(key string, field reflect.StructField) error) error {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := appendKeyPath(prefix, tag)
		if _, leaf := leafTypes[field.Type]; !leaf && field.Type.Kind() == reflect.Struct {
			if err := walkKeys(field.Type, key, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(key, field); err != nil {
			return err
		}
	}
	return nil
}
