package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/hubrag/internal/version"
)

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(out, version.String())
			return err
		},
	}
}
