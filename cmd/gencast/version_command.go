package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "显示版本信息",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gencast %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
