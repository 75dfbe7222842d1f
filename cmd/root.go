package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gnolang/summarizer/internal/program"
	"github.com/gnolang/summarizer/summarizer"
)

// Exit codes.
const (
	ExitSafe     = 0
	ExitUsage    = 6
	ExitInternal = 8
	ExitUnsafe   = 10
)

// Version is reported by --version.
var Version = "dev"

// exitError ends the process with code; err, when set, is printed first.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// cli holds the state shared by all subcommands.
type cli struct {
	cfgFile   string
	verbosity int

	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *cli) {
	c := &cli{logger: zap.NewNop(), stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:           "summarizer",
		Short:         "summarizer - SSA-based assertion checker for a subset of Go",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbosity < 0 {
				c.verbosity = 0
			}
			if c.verbosity > 10 {
				c.verbosity = 10
			}
			logger, err := newLogger(c.verbosity)
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", summarizer.DefaultConfigPath, "Path to the configuration file")
	rootCmd.PersistentFlags().IntVar(&c.verbosity, "verbosity", 2, "Log verbosity from 0 (silent) to 10 (debug)")

	rootCmd.AddCommand(newInitCmd(c))
	rootCmd.AddCommand(newCheckCmd(c))
	rootCmd.AddCommand(newShowCmd(c))
	rootCmd.AddCommand(newSummarizeCmd(c))
	rootCmd.AddCommand(newCfgCmd(c))
	return rootCmd, c
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd, _ := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSafe
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	if summarizer.IsInternal(err) {
		return ExitInternal
	}
	return ExitUsage
}

func newLogger(verbosity int) (*zap.Logger, error) {
	switch {
	case verbosity == 0:
		return zap.NewNop(), nil
	case verbosity >= 8:
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	level := zapcore.WarnLevel
	if verbosity >= 4 {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// addConfigFlags registers the flags that override configuration keys.
// Their values are read back through summarizer.LoadConfig, and only when
// the user set them.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("entry", "main", "Name of the entry function")
	fs.String("solver", "gini", "Decision procedure: gini or smtlib")
	fs.String("solver-command", "", "Solver command line for the smtlib backend (default \"z3 -in\")")
	fs.Int("int-width", 32, "Integer width in bits: 8, 16, 32 or 64")
	fs.Duration("timeout", 0, "Time limit per assertion (0 means none)")
	fs.Int("jobs", 0, "Number of concurrent checks (0 means one per CPU)")
	fs.Bool("no-simplify", false, "Do not simplify the SSA before checking")
	fs.Bool("no-assertions", false, "Ignore user assertions")
	fs.Bool("no-assumptions", false, "Ignore user assumptions")
	fs.Bool("bounds-check", false, "Assert that every array index is in range")
	fs.Bool("div-by-zero-check", false, "Assert that every divisor is nonzero")
	fs.String("error-label", "", "Treat reaching a statement with this label as a failure")
	fs.String("cache-dir", "", "Reuse reports stored in this directory for unchanged sources")
	fs.Duration("cache-max-age", summarizer.DefaultCacheMaxAge, "How long a stored report stays usable")
}

// engine builds the engine from the layered configuration.
func (c *cli) engine(cmd *cobra.Command) (*summarizer.Engine, error) {
	cfg, err := summarizer.LoadConfig(c.cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Configuration", zap.Any("config", cfg))
	return summarizer.New(cfg, c.logger)
}

// load builds the engine and loads the program named by args.
func (c *cli) load(cmd *cobra.Command, args []string) (*summarizer.Engine, *program.Program, error) {
	engine, err := c.engine(cmd)
	if err != nil {
		return nil, nil, err
	}
	prog, err := engine.Load(args)
	if err != nil {
		return nil, nil, err
	}
	return engine, prog, nil
}

// Main is the body of the summarizer binary.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
