// Package cmd contains the command line applications for the project.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/dropvault/pkg/app"
	"github.com/yeisme/dropvault/pkg/configs"
)

var (
	configPath string
	debug      bool

	// appConfig 由 PersistentPreRunE 初始化.
	appConfig *configs.AppConfig

	rootCmd = &cobra.Command{
		Use:           configs.AppName,
		Short:         "A temporary file sharing service",
		Long:          "dropvault stores uploaded files behind short share tokens and removes them once they expire.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Init(configPath)
			if err != nil {
				return err
			}

			appConfig = cfg

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file or directory (defaults and env are used when empty)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print viper debug output where supported")

	registerServeCommands()
	registerMaintenanceCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
