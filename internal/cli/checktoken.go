package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func CheckToken() *cobra.Command {
	var checkTokenConfigFile string
	var checkTokenCmd = &cobra.Command{
		Use:   "checktoken [TOKEN]",
		Short: "Check connection token",
		Long:  `Check connection token`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			tokens, err := tokenService(cmd, checkTokenConfigFile)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
			user, payload, err := checkToken(tokens, args[0])
			if err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("valid token for user %s\npayload: %s\n", user, string(payload))
		},
	}
	checkTokenCmd.Flags().StringVarP(&checkTokenConfigFile, "config", "c", "config.json", "path to config file")
	return checkTokenCmd
}
