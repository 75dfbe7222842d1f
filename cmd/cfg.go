package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/summarizer/internal/program"
)

func newCfgCmd(c *cli) *cobra.Command {
	var (
		funcName string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "cfg [paths...]",
		Short: "Print the location graph of a function",
		Long: `Outputs the location graph of the specified function in GraphViz format or renders it to a file.
Example) summarizer cfg --func main -o main.svg *.go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, prog, err := c.load(cmd, args)
			if err != nil {
				return err
			}
			if funcName == "" {
				funcName = prog.EntryPoint
			}
			fn, ok := prog.Function(funcName)
			if !ok {
				return fmt.Errorf("function not found: %s", funcName)
			}

			var buf strings.Builder
			if err := fn.PrintDot(&buf, nil); err != nil {
				return err
			}
			if output == "" {
				fmt.Fprint(c.stdout, buf.String())
				return nil
			}
			if err := program.RenderDot([]byte(buf.String()), output); err != nil {
				c.logger.Error("Failed to render graph to GraphViz file", zap.Error(err))
				return err
			}
			fmt.Fprintf(c.stdout, "GraphViz file created: %s\n", output)
			return nil
		},
	}
	addConfigFlags(cmd.Flags())
	cmd.Flags().StringVar(&funcName, "func", "", "Function to print (default: the entry point)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path for the rendered GraphViz file")
	return cmd
}
