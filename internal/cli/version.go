package cli

import (
	"fmt"
	"runtime"

	"github.com/windi-messenger/chathub/internal/build"

	"github.com/spf13/cobra"
)

func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Chathub version information",
		Long:  `Print the version information of Chathub`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(versionString())
		},
	}
}

func versionString() string {
	return fmt.Sprintf("Chathub v%s (commit: %s, Go version: %s)", build.Version, build.Commit, runtime.Version())
}
