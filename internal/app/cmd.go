package app

import (
	"github.com/windi-messenger/chathub/internal/config"

	"github.com/spf13/cobra"
)

func Chathub() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "",
		Short: "Chathub",
		Long:  "Chathub is a real-time messaging hub of Windi messenger",
		Run: func(cmd *cobra.Command, args []string) {
			Run(cmd, configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.json", "path to config file")
	config.DefineFlags(cmd)
	return cmd
}
