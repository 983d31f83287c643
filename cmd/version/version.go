package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trapwatch/trapwatch/internal/buildinfo"
)

// Command creates a new cobra.Command to print build metadata.
func Command(info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the trapwatch version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
}
