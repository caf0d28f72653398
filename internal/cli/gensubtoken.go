package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func GenSubToken() *cobra.Command {
	var genSubTokenConfigFile string
	var genSubTokenUser string
	var genSubTokenChannel string
	var genSubTokenQuiet bool
	var genSubTokenCmd = &cobra.Command{
		Use:   "gensubtoken",
		Short: "Generate sample subscription proof for user",
		Long:  `Generate sample subscription proof allowing user to subscribe to channel`,
		Run: func(cmd *cobra.Command, args []string) {
			genSubToken(cmd, genSubTokenConfigFile, genSubTokenUser, genSubTokenChannel, genSubTokenQuiet)
		},
	}
	genSubTokenCmd.Flags().StringVarP(&genSubTokenConfigFile, "config", "c", "config.json", "path to config file")
	genSubTokenCmd.Flags().StringVarP(&genSubTokenUser, "user", "u", "", "user ID")
	genSubTokenCmd.Flags().StringVarP(&genSubTokenChannel, "channel", "s", "", "channel")
	genSubTokenCmd.Flags().BoolVarP(&genSubTokenQuiet, "quiet", "q", false, "only output the token without anything else")
	return genSubTokenCmd
}

func genSubToken(cmd *cobra.Command, configFile string, user string, channel string, quiet bool) {
	tokens, err := tokenService(cmd, configFile)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	t, err := tokens.IssueSubscriptionProof(user, channel)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	if quiet {
		fmt.Print(t.Value)
		return
	}
	fmt.Printf("subscription proof for user %q and channel %q valid until %s:\n%s\n", user, channel, t.ExpiresAt.Format(time.RFC3339), t.Value)
}
