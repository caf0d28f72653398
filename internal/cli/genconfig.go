package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/windi-messenger/chathub/internal/config"
	"github.com/windi-messenger/chathub/internal/tools"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func GenConfig() *cobra.Command {
	var outputConfigFile string
	var genConfigCmd = &cobra.Command{
		Use:   "genconfig",
		Short: "Generate minimal configuration file to start with",
		Long:  `Generate minimal configuration file with random secrets to start with`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := genConfig(outputConfigFile); err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	genConfigCmd.Flags().StringVarP(&outputConfigFile, "config", "c", "config.json", "path to output config file")
	return genConfigCmd
}

// genConfig writes configuration with random token secret and API key, then
// loads it back to make sure it is valid.
func genConfig(outputConfigFile string) error {
	if tools.FileExists(outputConfigFile) {
		return errors.New("output config file already exists: " + outputConfigFile)
	}
	format, err := config.FormatFromPath(outputConfigFile)
	if err != nil {
		return err
	}
	conf := config.DefaultConfig()
	conf.Token.HMACSecretKey = uuid.NewString()
	conf.HttpAPI.Key = uuid.NewString()
	data, err := config.Marshal(conf, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputConfigFile, data, 0644); err != nil {
		return err
	}
	cfg, _, err := config.GetConfig(nil, outputConfigFile)
	if err != nil {
		_ = os.Remove(outputConfigFile)
		return fmt.Errorf("error getting config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		_ = os.Remove(outputConfigFile)
		return fmt.Errorf("error validating config: %w", err)
	}
	return nil
}
