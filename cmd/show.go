package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gnolang/summarizer/internal/program"
	"github.com/gnolang/summarizer/internal/ssa"
	"github.com/gnolang/summarizer/internal/verify"
	"github.com/gnolang/summarizer/summarizer"
)

type showOptions struct {
	function   string
	properties []string
}

func newShowCmd(c *cli) *cobra.Command {
	var opts showOptions
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print intermediate results of the analysis",
	}
	cmd.PersistentFlags().StringVar(&opts.function, "function", "", "Show only this function")
	cmd.PersistentFlags().StringArrayVar(&opts.properties, "property", nil, "Show only this property id (repeatable)")

	analyses := func(cmd *cobra.Command, args []string) ([]*verify.Analysis, error) {
		engine, prog, err := c.load(cmd, args)
		if err != nil {
			return nil, err
		}
		return engine.Analyze(prog, summarizer.Options{Function: opts.function})
	}

	sub := func(use, short string, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
		s := &cobra.Command{
			Use:   use + " [paths...]",
			Short: short,
			Args:  cobra.MinimumNArgs(1),
			RunE:  run,
		}
		addConfigFlags(s.Flags())
		return s
	}

	cmd.AddCommand(sub("ssa", "Print the SSA equalities and constraints of every location", func(cmd *cobra.Command, args []string) error {
		as, err := analyses(cmd, args)
		if err != nil {
			return err
		}
		for _, a := range as {
			if err := a.SSA.Write(c.stdout); err != nil {
				return err
			}
		}
		return nil
	}))

	cmd.AddCommand(sub("vcc", "Print the verification condition of every assertion", func(cmd *cobra.Command, args []string) error {
		engine, prog, err := c.load(cmd, args)
		if err != nil {
			return err
		}
		checker := engine.Checker(summarizer.Options{Function: opts.function, Properties: opts.properties})
		as, err := checker.Assertions(prog)
		if err != nil {
			return err
		}
		return checker.WriteVCC(c.stdout, as)
	}))

	cmd.AddCommand(sub("guards", "Print the guard of every location", func(cmd *cobra.Command, args []string) error {
		as, err := analyses(cmd, args)
		if err != nil {
			return err
		}
		for _, a := range as {
			fmt.Fprintf(c.stdout, "function %s\n", a.Function.Name)
			if err := a.SSA.WriteGuards(c.stdout, a.Guards); err != nil {
				return err
			}
		}
		return nil
	}))

	cmd.AddCommand(sub("defs", "Print the reaching definitions of every location", func(cmd *cobra.Command, args []string) error {
		as, err := analyses(cmd, args)
		if err != nil {
			return err
		}
		for _, a := range as {
			fmt.Fprintf(c.stdout, "function %s\n", a.Function.Name)
			if err := a.Defs.Dump(c.stdout); err != nil {
				return err
			}
		}
		return nil
	}))

	cmd.AddCommand(sub("assignments", "Print the objects written at every location", func(cmd *cobra.Command, args []string) error {
		as, err := analyses(cmd, args)
		if err != nil {
			return err
		}
		for _, a := range as {
			fmt.Fprintf(c.stdout, "function %s\n", a.Function.Name)
			if err := ssa.WriteAssignments(c.stdout, a.Function, a.Defs); err != nil {
				return err
			}
		}
		return nil
	}))

	cmd.AddCommand(sub("program", "Print the locations of every function", func(cmd *cobra.Command, args []string) error {
		_, prog, err := c.load(cmd, args)
		if err != nil {
			return err
		}
		return writeProgram(c.stdout, prog, opts.function)
	}))

	cmd.AddCommand(sub("properties", "List the properties of a program", func(cmd *cobra.Command, args []string) error {
		_, prog, err := c.load(cmd, args)
		if err != nil {
			return err
		}
		if _, ok := prog.Function(prog.EntryPoint); !ok {
			return verify.ErrNoEntryPoint
		}
		for _, p := range verify.InitializePropertyMap(prog).All() {
			if opts.function != "" && p.Function != opts.function {
				continue
			}
			fmt.Fprintf(c.stdout, "Property %s:\n  %s\n  %s\n", p.ID, p.Pos, p.Description)
		}
		return nil
	}))

	return cmd
}

func writeProgram(w io.Writer, prog *program.Program, function string) error {
	for _, fn := range prog.Each() {
		if function != "" && fn.Name != function {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s /* %s */\n", fn.Name, fn.Pos); err != nil {
			return err
		}
		for _, loc := range fn.Body {
			if _, err := fmt.Fprintf(w, "  %s\n", loc); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
