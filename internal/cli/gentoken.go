package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func GenToken() *cobra.Command {
	var genTokenConfigFile string
	var genTokenUser string
	var genTokenTTL int64
	var genTokenChannels []string
	var genTokenQuiet bool
	var genTokenCmd = &cobra.Command{
		Use:   "gentoken",
		Short: "Generate sample connection token for user",
		Long:  `Generate sample connection token for user`,
		Run: func(cmd *cobra.Command, args []string) {
			genToken(cmd, genTokenConfigFile, genTokenUser, genTokenTTL, genTokenChannels, genTokenQuiet)
		},
	}
	genTokenCmd.Flags().StringVarP(&genTokenConfigFile, "config", "c", "config.json", "path to config file")
	genTokenCmd.Flags().StringVarP(&genTokenUser, "user", "u", "", "user ID")
	genTokenCmd.Flags().Int64VarP(&genTokenTTL, "ttl", "t", 0, "token TTL in seconds, token.connection_ttl by default")
	genTokenCmd.Flags().StringSliceVarP(&genTokenChannels, "channels", "", nil, "channel patterns token is restricted to")
	genTokenCmd.Flags().BoolVarP(&genTokenQuiet, "quiet", "q", false, "only output the token without anything else")
	return genTokenCmd
}

func genToken(cmd *cobra.Command, configFile string, user string, ttlSeconds int64, channels []string, quiet bool) {
	tokens, err := tokenService(cmd, configFile)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	t, err := generateToken(tokens, user, time.Duration(ttlSeconds)*time.Second, channels)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	if quiet {
		fmt.Print(t.Value)
		return
	}
	fmt.Printf("connection token for user %q valid until %s:\n%s\n", user, t.ExpiresAt.Format(time.RFC3339), t.Value)
}
