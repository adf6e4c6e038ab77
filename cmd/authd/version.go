package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is overridable at link time via -ldflags "-X main.version=...",
// matching the teacher's version package convention (version/version.go)
// without needing a separate package for a single string.
var version = "dev"

func commandVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf(`authd Version: %s
Go Version: %s
Go OS/ARCH: %s %s
`, version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
