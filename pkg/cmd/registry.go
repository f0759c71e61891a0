package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
	"github.com/yeisme/dropvault/pkg/internal/storage/db"
	"github.com/yeisme/dropvault/pkg/internal/storage/kv"
	"github.com/yeisme/dropvault/pkg/internal/storage/mq"
)

// listCmd 创建列出已注册后端的 ls 子命令.
func listCmd[T ~string](what string, registered func() []T) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "list all registered " + what + " types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			printTypes(cmd.OutOrStdout(), what, registered())
		},
	}
}

func printTypes[T ~string](w io.Writer, what string, types []T) {
	fmt.Fprintf(w, "Registered %s types:\n", what)

	for _, t := range types {
		fmt.Fprintln(w, "   - "+string(t))
	}
}

func registryCmd[T ~string](use, short, what string, registered func() []T, aliases ...string) *cobra.Command {
	c := &cobra.Command{Use: use, Short: short, Aliases: aliases}
	c.AddCommand(listCmd(what, registered))

	return c
}

// registerDBCommands 注册数据库相关命令.
func registerDBCommands() {
	rootCmd.AddCommand(registryCmd("db", "Database related commands", "database", db.GetRegisteredDBTypes))
	rootCmd.AddCommand(registryCmd("blob", "Blob storage related commands", "blob storage", blob.GetRegisteredTypes, "storage"))
}

// registerKVCommands 注册 KV 相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(registryCmd("kv", "Key-Value store related commands", "kv", kv.GetRegisteredKVTypes, "keyvalue"))
}

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(registryCmd("mq", "Message queue related commands", "mq", mq.GetRegisteredTypes, "messagequeue"))
}
