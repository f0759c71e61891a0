package cmd

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/dropvault/pkg/configs"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "config subcommands",
	}

	// 打印当前使用的配置文件路径.
	pathCmd = &cobra.Command{
		Use:   "path",
		Short: "print the path of the current config file",
		Run: func(cmd *cobra.Command, args []string) {
			used := ""
			if v := configs.GetViper(); v != nil {
				used = v.ConfigFileUsed()
			}

			if used == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no config file used, running on defaults and "+configs.EnvPrefix+"_* env")
				return
			}

			fmt.Fprintln(cmd.OutOrStdout(), used)
		},
	}

	// 以 JSON 打印生效的配置，--debug 时附带 viper 的调试输出.
	debugCmd = &cobra.Command{
		Use:     "debug",
		Short:   "print the effective config values",
		Aliases: []string{"show"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v := configs.GetViper(); v != nil && debug {
				v.Debug()
			}

			return printJSON(cmd, appConfig)
		},
	}

	// 校验另一份配置文件，不影响当前进程.
	validateCmd = &cobra.Command{
		Use:   "validate <path>",
		Short: "load and validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := configs.LoadConfig(args[0]); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "config is valid")

			return nil
		},
	}
)

func printJSON(cmd *cobra.Command, v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return nil
}

// registerConfigsCommands 注册 config 子命令.
func registerConfigsCommands() {
	configCmd.AddCommand(pathCmd, debugCmd, validateCmd)

	rootCmd.AddCommand(configCmd)
}
