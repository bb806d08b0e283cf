package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"lmhost/pkg/types"
)

func newModelsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered models and their availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := newStack(o.cfg, o.log)
			if err != nil {
				return err
			}
			defer st.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tAVAILABILITY\tSIZE\tINPUTS\tPATH")
			for _, m := range st.mgr.Models() {
				size := "-"
				if fi, err := os.Stat(m.Path); err == nil {
					size = units.HumanSize(float64(fi.Size()))
				}
				inputs := []string{"text"}
				for _, in := range m.Inputs {
					if in == types.ContentText {
						continue
					}
					inputs = append(inputs, string(in))
				}
				def := ""
				if m.ID == st.mgr.DefaultModel() {
					def = " (default)"
				}
				fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\n", m.ID, def, m.Availability, size, strings.Join(inputs, ","), m.Path)
			}
			return tw.Flush()
		},
	}
}
