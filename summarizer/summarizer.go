// Package summarizer is the entry point for embedding the verifier: it loads
// Go sources into a location program, builds the SSA of every function and
// checks each assertion with the configured decision procedure.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/gnolang/summarizer/internal/frontend"
	"github.com/gnolang/summarizer/internal/program"
	"github.com/gnolang/summarizer/internal/solver"
	"github.com/gnolang/summarizer/internal/ssa"
	"github.com/gnolang/summarizer/internal/verify"
)

// Engine runs verifications with one configuration.
type Engine struct {
	cfg     Config
	logger  *zap.Logger
	factory solver.Factory
	cache   *Cache
}

// New returns an engine for cfg. A nil logger logs nothing.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, err := solver.New(solver.Config{
		Name:    cfg.Solver,
		Width:   cfg.IntWidth,
		Command: cfg.SolverCommand,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{cfg: cfg, logger: logger, factory: factory}
	if cfg.CacheDir != "" {
		if e.cache, err = OpenCache(cfg.CacheDir); err != nil {
			return nil, err
		}
		if cfg.CacheMaxAge > 0 {
			e.cache.SetMaxAge(cfg.CacheMaxAge)
		}
	}
	return e, nil
}

// InvalidateCache drops every stored report. It does nothing without a
// cache directory.
func (e *Engine) InvalidateCache() error {
	if e.cache == nil {
		return nil
	}
	e.logger.Info("Invalidating report cache", zap.String("dir", e.cfg.CacheDir))
	return e.cache.InvalidateAll()
}

// Config returns the configuration of the engine.
func (e *Engine) Config() Config { return e.cfg }

// Options narrows a run.
type Options struct {
	// Function restricts the run to one function.
	Function string
	// Properties restricts checking and reporting to the listed ids.
	Properties []string
	// Progress receives a progress bar over the checked assertions; nil
	// shows none.
	Progress io.Writer
}

func (e *Engine) frontendOptions() frontend.Options {
	return frontend.Options{
		Entry:          e.cfg.Entry,
		NoAssertions:   !e.cfg.Assertions,
		NoAssumptions:  !e.cfg.Assumptions,
		BoundsCheck:    e.cfg.Checks.Bounds,
		DivByZeroCheck: e.cfg.Checks.DivByZero,
		ErrorLabel:     e.cfg.ErrorLabel,
	}
}

// Load parses the Go files named by paths as one package. Directories
// contribute every .go file they contain, test files excepted.
func (e *Engine) Load(paths []string) (*program.Program, error) {
	files, err := SourceFiles(paths)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Parsing", zap.Strings("files", files))
	prog, err := frontend.ParseFiles(files, e.frontendOptions())
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Loaded program",
		zap.Int("functions", len(prog.Order)),
		zap.String("entry", prog.EntryPoint))
	return prog, nil
}

// LoadSource parses a single file held in memory.
func (e *Engine) LoadSource(filename string, src []byte) (*program.Program, error) {
	return frontend.ParseSource(filename, src, e.frontendOptions())
}

// Checker returns a dispatcher configured for this engine.
func (e *Engine) Checker(opts Options) *verify.Checker {
	return e.checker(opts, nil)
}

func (e *Engine) checker(opts Options, onCheck func()) *verify.Checker {
	return verify.New(verify.Options{
		Factory:    e.factory,
		Width:      e.cfg.IntWidth,
		Simplify:   e.cfg.Simplify,
		Jobs:       e.cfg.Jobs,
		Timeout:    e.cfg.Timeout,
		Function:   opts.Function,
		Properties: opts.Properties,
		Logger:     e.logger,
		OnCheck:    onCheck,
	})
}

// Check verifies every selected assertion of prog.
func (e *Engine) Check(ctx context.Context, prog *program.Program, opts Options) (*verify.Report, error) {
	var bar *progressbar.ProgressBar
	checker := e.checker(opts, func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	analyses, err := checker.Assertions(prog)
	if err != nil {
		return nil, err
	}
	if opts.Progress != nil {
		bar = newProgressBar(opts.Progress, checker.Count(analyses))
		defer func() {
			_ = bar.Finish()
			fmt.Fprintln(opts.Progress)
		}()
	}
	return checker.CheckAnalyses(ctx, prog, analyses)
}

// CheckFiles loads paths and checks the resulting program. With a cache
// directory configured, a stored report for the same sources and settings
// is returned without checking.
func (e *Engine) CheckFiles(ctx context.Context, paths []string, opts Options) (*verify.Report, error) {
	var key string
	if e.cache != nil {
		files, err := SourceFiles(paths)
		if err != nil {
			return nil, err
		}
		if key, err = cacheKey(e.cfg, opts, files); err != nil {
			return nil, err
		}
		if report, ok := e.cache.Get(key); ok {
			e.logger.Info("Using cached report", zap.String("key", key))
			return report, nil
		}
	}

	prog, err := e.Load(paths)
	if err != nil {
		return nil, err
	}
	report, err := e.Check(ctx, prog, opts)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if err := e.cache.Set(key, report); err != nil {
			e.logger.Warn("Failed to store report", zap.Error(err))
		}
	}
	return report, nil
}

// Analyze builds the SSA of every covered function, with or without
// assertions, for the show commands.
func (e *Engine) Analyze(prog *program.Program, opts Options) ([]*verify.Analysis, error) {
	fns, err := e.Checker(opts).Functions(prog)
	if err != nil {
		return nil, err
	}
	out := make([]*verify.Analysis, 0, len(fns))
	for _, fn := range fns {
		a, err := verify.Analyze(fn, e.cfg.Simplify, e.cfg.IntWidth)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Name, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// IsInternal reports whether err is a failure of the tool itself rather
// than of its input.
func IsInternal(err error) bool {
	var ie *ssa.InvariantError
	return errors.As(err, &ie) || errors.Is(err, verify.ErrDecisionProcedure)
}

func newProgressBar(w io.Writer, n int) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("checking assertions"),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

var desiredExtensions = map[string]bool{
	".go": true,
}

func hasDesiredExtension(path string) bool {
	return desiredExtensions[filepath.Ext(path)] && !strings.HasSuffix(path, "_test.go")
}

// SourceFiles expands paths into the Go files to load, sorted within each
// directory. Files named explicitly are kept whatever their extension.
func SourceFiles(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, frontend.ErrNoInput
	}
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		var found []string
		err = filepath.Walk(path, func(filePath string, fileInfo os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fileInfo.IsDir() && hasDesiredExtension(filePath) {
				found = append(found, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking directory %s: %w", path, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, frontend.ErrNoInput
	}
	return files, nil
}
