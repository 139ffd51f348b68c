package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/numtide/precisefmt/cmd/format"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newResolve(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>",
		Short: "Print the formatter and config which would be used for a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workingDir, err := filepath.Abs(v.GetString("working-dir"))
			if err != nil {
				return fmt.Errorf("failed to get absolute path for working directory: %w", err)
			}

			if err = readConfig(v, cmd, workingDir); err != nil {
				return err
			}

			configureLogging(v)

			return format.Resolve(v, cmd, args[0]) //nolint:wrapcheck
		},
	}
}
