package main

import (
	"context"
	"os"

	"github.com/trapwatch/trapwatch/cmd"
	"github.com/trapwatch/trapwatch/internal/buildinfo"
)

func main() {
	rootCmd := cmd.RootCommand(buildinfo.Current())
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
