package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gnolang/summarizer/summarizer"
)

func newSummarizeCmd(c *cli) *cobra.Command {
	var function string
	cmd := &cobra.Command{
		Use:   "summarize [paths...]",
		Short: "Print the entry and exit variables of every function",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, prog, err := c.load(cmd, args)
			if err != nil {
				return err
			}
			analyses, err := engine.Analyze(prog, summarizer.Options{Function: function})
			if err != nil {
				return err
			}
			for _, a := range analyses {
				if err := a.SSA.WriteEntryExit(c.stdout); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addConfigFlags(cmd.Flags())
	cmd.Flags().StringVar(&function, "function", "", "Summarize only this function")
	return cmd
}
