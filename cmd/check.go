package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/summarizer/formatter"
	"github.com/gnolang/summarizer/internal/verify"
	"github.com/gnolang/summarizer/summarizer"
)

type checkOptions struct {
	function   string
	properties []string
	xmlUI      bool
	json       bool
	showTrace  bool
	showVCC    bool
	alarms     string
	watch      bool
	progress   bool
	invalidate bool
}

func newCheckCmd(c *cli) *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Check every assertion of a program",
		Long: `Loads the Go files or directories given as one package, builds the SSA of
every function and checks each assertion with the decision procedure.
Exits with 0 when all properties hold, 10 when one fails, 6 when the input
cannot be loaded and 8 on internal errors.
Example) summarizer check --bounds-check --show-trace main.go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := c.engine(cmd)
			if err != nil {
				return err
			}
			if opts.invalidate {
				if err := engine.InvalidateCache(); err != nil {
					return err
				}
			}
			if opts.watch {
				return engine.Watch(cmd.Context(), args, func() {
					if _, err := c.runCheck(cmd.Context(), engine, args, opts); err != nil {
						c.logger.Error("Check failed", zap.Error(err))
						fmt.Fprintf(c.stderr, "error: %v\n", err)
					}
				})
			}
			verdict, err := c.runCheck(cmd.Context(), engine, args, opts)
			if err != nil {
				return err
			}
			if verdict == verify.Unsafe {
				return &exitError{code: ExitUnsafe}
			}
			return nil
		},
	}

	fs := cmd.Flags()
	addConfigFlags(fs)
	fs.StringVar(&opts.function, "function", "", "Check only this function")
	fs.StringArrayVar(&opts.properties, "property", nil, "Check only this property id (repeatable)")
	fs.BoolVar(&opts.xmlUI, "xml-ui", false, "Write the report as XML")
	fs.BoolVar(&opts.json, "json", false, "Write the report as JSON")
	fs.BoolVar(&opts.showTrace, "show-trace", false, "Show a counterexample for every failure")
	fs.BoolVar(&opts.showVCC, "show-vcc", false, "Print the verification conditions instead of checking them")
	fs.StringVar(&opts.alarms, "storefront-alarms", "", "Write failed properties as storefront alarms to this file")
	fs.BoolVar(&opts.watch, "watch", false, "Check again whenever a source file changes")
	fs.BoolVar(&opts.progress, "progress", true, "Show a progress bar on a terminal")
	fs.BoolVar(&opts.invalidate, "invalidate-cache", false, "Drop the stored reports before checking")
	cmd.MarkFlagsMutuallyExclusive("xml-ui", "json")
	return cmd
}

// runCheck loads and checks the program once and writes the report.
func (c *cli) runCheck(ctx context.Context, engine *summarizer.Engine, paths []string, opts checkOptions) (verify.Verdict, error) {
	run := summarizer.Options{Function: opts.function, Properties: opts.properties}

	if opts.showVCC {
		prog, err := engine.Load(paths)
		if err != nil {
			return verify.Safe, err
		}
		checker := engine.Checker(run)
		analyses, err := checker.Assertions(prog)
		if err != nil {
			return verify.Safe, err
		}
		return verify.Safe, checker.WriteVCC(c.stdout, analyses)
	}

	if opts.progress && !opts.xmlUI && !opts.json && isTerminal(c.stderr) {
		run.Progress = c.stderr
	}
	report, err := engine.CheckFiles(ctx, paths, run)
	if err != nil {
		return verify.Safe, err
	}

	if opts.alarms != "" {
		if err := formatter.WriteAlarmsFile(opts.alarms, report); err != nil {
			c.logger.Error("Failed to write storefront alarms", zap.String("path", opts.alarms), zap.Error(err))
			return report.Verdict, &exitError{code: ExitUsage, err: err}
		}
	}
	if err := c.writeReport(c.stdout, engine.Config().Entry, report, opts); err != nil {
		return report.Verdict, &exitError{code: ExitUsage, err: err}
	}
	return report.Verdict, nil
}

func (c *cli) writeReport(w io.Writer, entry string, report *verify.Report, opts checkOptions) error {
	switch {
	case opts.xmlUI:
		return formatter.WriteXML(w, report, opts.showTrace)
	case opts.json:
		return formatter.WriteJSON(w, report, opts.showTrace)
	}
	c.logger.Info("Verification finished",
		zap.String("entry", entry),
		zap.Stringer("verdict", report.Verdict),
		zap.Int("failed", report.Failed()))
	return formatter.WriteText(w, report, formatter.TextOptions{
		Sources:   formatter.CachedSources(),
		ShowTrace: opts.showTrace,
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
