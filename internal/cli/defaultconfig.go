package cli

import (
	"fmt"
	"os"

	"github.com/windi-messenger/chathub/internal/config"

	"github.com/spf13/cobra"
)

func DefaultConfig() *cobra.Command {
	var format string
	var defaultConfigCmd = &cobra.Command{
		Use:   "defaultconfig",
		Short: "Print full configuration with defaults",
		Long:  `Print full Chathub configuration with defaults in json, yaml or toml`,
		Run: func(cmd *cobra.Command, args []string) {
			data, err := config.Marshal(config.DefaultConfig(), format)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
		},
	}
	defaultConfigCmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, yaml or toml")
	return defaultConfigCmd
}
