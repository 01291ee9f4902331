package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file and print the effective settings",
		Long: `Validate loads the configuration file given with --config, applies defaults
and SOMEIP_* environment overrides, checks every value and prints the
effective configuration as YAML.

Examples:
  someip validate -c someip.yml
  SOMEIP_PIPELINE_WORKERS=8 someip validate -c someip.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := opts.cfg.YAML()
			if err != nil {
				return err
			}
			source := opts.configFile
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "VALID: %s\n", source)
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
