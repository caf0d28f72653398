package configtypes

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

// PEMData is a PEM source. Raw PEM content is checked first, then base64
// encoded PEM content, then a path to file.
type PEMData string

func (p PEMData) String() string {
	return string(p)
}

// MarshalText is used by JSON and TOML encoders.
func (p PEMData) MarshalText() ([]byte, error) {
	return []byte(p), nil
}

// UnmarshalText is used by JSON and TOML decoders.
func (p *PEMData) UnmarshalText(text []byte) error {
	*p = PEMData(text)
	return nil
}

// StringToPEMDataHookFunc decodes PEMData from strings.
func StringToPEMDataHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(PEMData("")) {
			return data, nil
		}
		return PEMData(data.(string)), nil
	}
}

func isValidPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	return block != nil
}

// Load returns PEM content and a name of source it was loaded from.
func (p PEMData) Load(statFile StatFileFunc, readFile ReadFileFunc) ([]byte, string, error) {
	value := []byte(p)
	if isValidPEM(value) {
		return value, "raw pem", nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(p)); err == nil && isValidPEM(decoded) {
		return decoded, "base64 pem", nil
	}
	if _, err := statFile(string(p)); err == nil {
		content, err := readFile(string(p))
		if err != nil {
			return nil, "", fmt.Errorf("error reading file: %w", err)
		}
		if !isValidPEM(content) {
			return nil, "", fmt.Errorf("file %q contains invalid PEM data", string(p))
		}
		return content, "pem file path", nil
	}
	return nil, "", errors.New("invalid PEM data: not a file path, base64 PEM or raw PEM")
}
