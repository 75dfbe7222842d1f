package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/summarizer/summarizer"
)

// newInitCmd writes the default configuration to the --config path.
func newInitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := summarizer.WriteConfig(c.cfgFile, summarizer.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Configuration file created/updated: %s\n", c.cfgFile)
			return nil
		},
	}
}
