package main

import (
	"github.com/windi-messenger/chathub/internal/app"
	"github.com/windi-messenger/chathub/internal/cli"
)

func main() {
	rootCmd := app.Chathub()
	rootCmd.AddCommand(
		cli.Version(),
		cli.CheckConfig(),
		cli.GenConfig(),
		cli.DefaultConfig(),
		cli.DefaultEnv(),
		cli.GenToken(),
		cli.GenSubToken(),
		cli.CheckToken(),
		cli.CheckSubToken(),
	)
	_ = rootCmd.Execute()
}
