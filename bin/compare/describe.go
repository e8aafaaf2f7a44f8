package main

import (
	"image-compare/internal/compare"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

func newDescribeCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the node descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := compare.Describe()
			switch output {
			case "json":
				return writeJSON(cmd.OutOrStdout(), d)
			case "yaml":
				encoder := yaml.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent(2)
				if err := encoder.Encode(d); err != nil {
					return xerrors.Errorf("failed to encode descriptor: %w", err)
				}
				return encoder.Close()
			default:
				return xerrors.Errorf("unknown output format: %s", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json or yaml)")
	return cmd
}
