package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func CheckSubToken() *cobra.Command {
	var checkSubTokenConfigFile string
	var checkSubTokenUser string
	var checkSubTokenChannel string
	var checkSubTokenCmd = &cobra.Command{
		Use:   "checksubtoken [TOKEN]",
		Short: "Check subscription proof",
		Long:  `Check subscription proof issued for user and channel`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			tokens, err := tokenService(cmd, checkSubTokenConfigFile)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
			payload, err := checkSubToken(tokens, args[0], checkSubTokenUser, checkSubTokenChannel)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("valid subscription proof for user %s and channel %s\npayload: %s\n", checkSubTokenUser, checkSubTokenChannel, string(payload))
		},
	}
	checkSubTokenCmd.Flags().StringVarP(&checkSubTokenConfigFile, "config", "c", "config.json", "path to config file")
	checkSubTokenCmd.Flags().StringVarP(&checkSubTokenUser, "user", "u", "", "user ID")
	checkSubTokenCmd.Flags().StringVarP(&checkSubTokenChannel, "channel", "s", "", "channel")
	return checkSubTokenCmd
}
