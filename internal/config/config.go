// Package config contains server Config and the code to load it from file,
// environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-envparse"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/windi-messenger/chathub/internal/configtypes"
)

// EnvPrefix of environment variables, for example CHATHUB_TOKEN_HMAC_SECRET_KEY.
const EnvPrefix = "CHATHUB"

type Config struct {
	// HTTP is a configuration for HTTP server.
	HTTP configtypes.HTTPServer `mapstructure:"http_server" json:"http_server" envconfig:"http_server" toml:"http_server" yaml:"http_server"`
	// Log is a configuration for logging.
	Log configtypes.Log `mapstructure:"log" json:"log" envconfig:"log" toml:"log" yaml:"log"`
	// Token configures connection tokens and subscription proofs issued and verified by server.
	Token configtypes.Token `mapstructure:"token" json:"token" envconfig:"token" toml:"token" yaml:"token"`
	// UserAuth configures verification of messenger access tokens on token endpoints.
	UserAuth configtypes.UserAuth `mapstructure:"user_auth" json:"user_auth" envconfig:"user_auth" toml:"user_auth" yaml:"user_auth"`
	// Hub configures channels, history, presence and client queues.
	Hub configtypes.Hub `mapstructure:"hub" json:"hub" envconfig:"hub" toml:"hub" yaml:"hub"`
	// HttpAPI is a configuration for server HTTP API. It's enabled by default.
	HttpAPI configtypes.HttpAPI `mapstructure:"http_api" json:"http_api" envconfig:"http_api" toml:"http_api" yaml:"http_api"`
	// TokenAPI exposes endpoints to exchange access token for connection token and subscription proof.
	TokenAPI configtypes.TokenAPI `mapstructure:"token_api" json:"token_api" envconfig:"token_api" toml:"token_api" yaml:"token_api"`
	// WebSocket configuration. This transport is enabled by default.
	WebSocket configtypes.WebSocket `mapstructure:"websocket" json:"websocket" envconfig:"websocket" toml:"websocket" yaml:"websocket"`
	// Store configures durable message log.
	Store configtypes.Store `mapstructure:"store" json:"store" envconfig:"store" toml:"store" yaml:"store"`
	// Membership configures source of chat membership.
	Membership configtypes.Membership `mapstructure:"membership" json:"membership" envconfig:"membership" toml:"membership" yaml:"membership"`
	// Prometheus metrics configuration.
	Prometheus configtypes.Prometheus `mapstructure:"prometheus" json:"prometheus" envconfig:"prometheus" toml:"prometheus" yaml:"prometheus"`
	// Graphite is a configuration for export metrics to Graphite.
	Graphite configtypes.Graphite `mapstructure:"graphite" json:"graphite" envconfig:"graphite" toml:"graphite" yaml:"graphite"`
	// Health check endpoint configuration.
	Health configtypes.Health `mapstructure:"health" json:"health" envconfig:"health" toml:"health" yaml:"health"`
	// OpenTelemetry is a configuration for OpenTelemetry tracing.
	OpenTelemetry configtypes.OpenTelemetry `mapstructure:"opentelemetry" json:"opentelemetry" envconfig:"opentelemetry" toml:"opentelemetry" yaml:"opentelemetry"`

	// PidFile is a path to write a file with process PID.
	PidFile string `mapstructure:"pid_file" json:"pid_file" envconfig:"pid_file" toml:"pid_file" yaml:"pid_file"`
}

type Meta struct {
	FileNotFound bool
	UnknownKeys  []string
	UnknownEnvs  []string
	// KnownEnvVars maps environment variable to config key.
	KnownEnvVars map[string]string
}

var bindPFlags = []string{
	"pid_file", "http_server.port", "http_server.address", "http_server.internal_port",
	"http_server.internal_address", "log.level", "log.file", "http_api.insecure", "http_api.external",
	"token_api.enabled", "prometheus.enabled", "health.enabled",
}

func DefineFlags(rootCmd *cobra.Command) {
	rootCmd.Flags().StringP("pid_file", "", "", "optional path to create PID file")
	rootCmd.Flags().StringP("http_server.address", "a", "", "interface address to listen on")
	rootCmd.Flags().StringP("http_server.port", "p", "8000", "port to bind HTTP server to")
	rootCmd.Flags().StringP("http_server.internal_address", "", "", "custom interface address to listen on for internal endpoints")
	rootCmd.Flags().StringP("http_server.internal_port", "", "", "custom port for internal endpoints")
	rootCmd.Flags().StringP("log.level", "", "info", "set the log level: trace, debug, info, error, fatal or none")
	rootCmd.Flags().StringP("log.file", "", "", "optional log file - if not specified logs go to STDOUT")
	rootCmd.Flags().BoolP("http_api.insecure", "", false, "use insecure API mode")
	rootCmd.Flags().BoolP("http_api.external", "", false, "expose API handler on external port")
	rootCmd.Flags().BoolP("token_api.enabled", "", false, "enable token endpoints")
	rootCmd.Flags().BoolP("prometheus.enabled", "", false, "enable Prometheus metrics endpoint")
	rootCmd.Flags().BoolP("health.enabled", "", false, "enable health check endpoint")
}

func newViper() *viper.Viper {
	return viper.NewWithOptions(viper.WithDecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		configtypes.StringToDurationHookFunc(),
		configtypes.StringToPEMDataHookFunc(),
		configtypes.StringToMapStringStringHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
}

func GetConfig(cmd *cobra.Command, configFile string) (Config, Meta, error) {
	v := newViper()

	if cmd != nil {
		for _, flag := range bindPFlags {
			if f := cmd.Flags().Lookup(flag); f != nil {
				_ = v.BindPFlag(flag, f)
			}
		}
	}

	knownEnvVars, err := bindEnv(v, reflect.TypeOf(Config{}))
	if err != nil {
		return Config{}, Meta{}, err
	}

	meta := Meta{}

	if configFile != "" {
		v.SetConfigFile(configFile)
		err := v.ReadInConfig()
		if err != nil {
			var configFileNotFoundError *os.PathError
			if errors.As(err, &configFileNotFoundError) {
				meta.FileNotFound = true
			} else {
				return Config{}, Meta{}, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return Config{}, Meta{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	meta.UnknownKeys = findUnknownKeys(v.AllSettings(), conf, "")
	meta.UnknownEnvs = checkEnvironmentVars(knownEnvVars)
	meta.KnownEnvVars = knownEnvVars
	return *conf, meta, nil
}

// findValidKeys finds valid keys in a struct, including embedded structs.
func findValidKeys(typ reflect.Type, validKeys map[string]reflect.StructField) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag != "" && tag != ",squash" {
			validKeys[tag] = field
		} else if field.Anonymous && strings.Contains(tag, "squash") {
			embeddedType := field.Type
			if embeddedType.Kind() == reflect.Ptr {
				embeddedType = embeddedType.Elem()
			}
			if embeddedType.Kind() == reflect.Struct {
				findValidKeys(embeddedType, validKeys)
			}
		}
	}
}

func findUnknownKeys(data map[string]any, configStruct any, parentKey string) []string {
	var unknownKeys []string
	val := reflect.ValueOf(configStruct)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	validKeys := make(map[string]reflect.StructField)
	findValidKeys(val.Type(), validKeys)

	for key, value := range data {
		field, exists := validKeys[key]
		if !exists {
			unknownKeys = append(unknownKeys, appendKeyPath(parentKey, key))
			continue
		}
		fieldValue := val.FieldByName(field.Name)
		if fieldValue.Kind() != reflect.Struct || field.Anonymous {
			continue
		}
		if nestedMap, ok := value.(map[string]any); ok {
			unknownKeys = append(unknownKeys, findUnknownKeys(nestedMap, fieldValue.Interface(), appendKeyPath(parentKey, key))...)
		}
	}
	return unknownKeys
}

func appendKeyPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func checkEnvironmentVars(knownEnvVars map[string]string) []string {
	var unknownEnvs []string
	envPrefix := EnvPrefix + "_"
	for _, envVar := range os.Environ() {
		kv, err := envparse.Parse(strings.NewReader(envVar))
		if err != nil {
			continue
		}
		for envKey := range kv {
			if !strings.HasPrefix(envKey, envPrefix) || strings.HasPrefix(envKey, envPrefix+"VAR_") {
				continue
			}
			// Kubernetes adds service variables which are not used by server.
			if isKubernetesEnvVar(envKey) {
				continue
			}
			if _, ok := knownEnvVars[envKey]; !ok {
				unknownEnvs = append(unknownEnvs, envKey)
			}
		}
	}
	return unknownEnvs
}

var k8sEnvRegex = regexp.MustCompile(`^CHATHUB(?:_[A-Z]+)?_(PORT|SERVICE_)`)

func isKubernetesEnvVar(envKey string) bool {
	return k8sEnvRegex.MatchString(envKey)
}

// DefaultConfig is a helper to be used in tests.
func DefaultConfig() Config {
	conf, _, err := GetConfig(nil, "")
	if err != nil {
		panic("error during getting default config: " + err.Error())
	}
	return conf
}
