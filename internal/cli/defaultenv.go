package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/windi-messenger/chathub/internal/config"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func DefaultEnv() *cobra.Command {
	var baseConfigFile string
	var defaultEnvCmd = &cobra.Command{
		Use:   "defaultenv",
		Short: "Generate full environment var list with defaults",
		Long:  `Generate full Chathub environment var list with defaults`,
		Run: func(cmd *cobra.Command, args []string) {
			conf, meta, err := config.GetConfig(nil, baseConfigFile)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
			lines, err := envLines(conf, meta.KnownEnvVars)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(strings.Join(lines, "\n"))
		},
	}
	defaultEnvCmd.Flags().StringVarP(&baseConfigFile, "base", "b", "", "path to the base config file to use")
	return defaultEnvCmd
}

// envLines renders VAR=value line for every known environment variable,
// sorted by variable name.
func envLines(conf config.Config, knownEnvVars map[string]string) ([]string, error) {
	data, err := json.Marshal(conf)
	if err != nil {
		return nil, err
	}
	envKeys := make([]string, 0, len(knownEnvVars))
	for env := range knownEnvVars {
		envKeys = append(envKeys, env)
	}
	sort.Strings(envKeys)
	lines := make([]string, 0, len(envKeys))
	for _, env := range envKeys {
		lines = append(lines, env+"="+envValue(gjson.GetBytes(data, knownEnvVars[env])))
	}
	return lines, nil
}

func envValue(v gjson.Result) string {
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return `""`
	case v.IsArray():
		var elements []string
		for _, item := range v.Array() {
			elements = append(elements, item.String())
		}
		return strconv.Quote(strings.Join(elements, ","))
	case v.IsObject():
		return strconv.Quote(v.Raw)
	case v.Type == gjson.String:
		return strconv.Quote(v.String())
	}
	return v.Raw
}
