package summarizer

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gnolang/summarizer/internal/solver"
)

// DefaultConfigPath is read when no configuration file is named.
const DefaultConfigPath = ".summarizer.yaml"

// ErrConfig marks an invalid configuration.
var ErrConfig = errors.New("invalid configuration")

// Checks selects the instrumentation the front end adds.
type Checks struct {
	Bounds    bool `mapstructure:"bounds" yaml:"bounds"`
	DivByZero bool `mapstructure:"div_by_zero" yaml:"div_by_zero"`
}

// Config represents the settings of a verification run.
type Config struct {
	Name          string        `mapstructure:"name" yaml:"name"`
	Entry         string        `mapstructure:"entry" yaml:"entry"`
	Solver        string        `mapstructure:"solver" yaml:"solver"`
	SolverCommand string        `mapstructure:"solver_command" yaml:"solver_command,omitempty"`
	IntWidth      int           `mapstructure:"int_width" yaml:"int_width"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Jobs          int           `mapstructure:"jobs" yaml:"jobs"`
	Simplify      bool          `mapstructure:"simplify" yaml:"simplify"`
	Assertions    bool          `mapstructure:"assertions" yaml:"assertions"`
	Assumptions   bool          `mapstructure:"assumptions" yaml:"assumptions"`
	Checks        Checks        `mapstructure:"checks" yaml:"checks"`
	ErrorLabel    string        `mapstructure:"error_label" yaml:"error_label,omitempty"`
	CacheDir      string        `mapstructure:"cache_dir" yaml:"cache_dir,omitempty"`
	CacheMaxAge   time.Duration `mapstructure:"cache_max_age" yaml:"cache_max_age"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Name:        "summarizer",
		Entry:       "main",
		Solver:      "gini",
		IntWidth:    32,
		Simplify:    true,
		Assertions:  true,
		Assumptions: true,
		CacheMaxAge: DefaultCacheMaxAge,
	}
}

// Validate rejects settings no backend can honor.
func (c Config) Validate() error {
	if c.Entry == "" {
		return fmt.Errorf("%w: empty entry point", ErrConfig)
	}
	if !solver.ValidWidth(c.IntWidth) {
		return fmt.Errorf("%w: int_width must be 8, 16, 32 or 64, got %d", ErrConfig, c.IntWidth)
	}
	switch c.Solver {
	case "gini", "smtlib":
	default:
		return fmt.Errorf("%w: unknown solver %q", ErrConfig, c.Solver)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("%w: negative jobs", ErrConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrConfig)
	}
	if c.CacheMaxAge < 0 {
		return fmt.Errorf("%w: negative cache_max_age", ErrConfig)
	}
	return nil
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"entry":             "entry",
	"solver":            "solver",
	"solver-command":    "solver_command",
	"int-width":         "int_width",
	"timeout":           "timeout",
	"jobs":              "jobs",
	"bounds-check":      "checks.bounds",
	"div-by-zero-check": "checks.div_by_zero",
	"error-label":       "error_label",
	"cache-dir":         "cache_dir",
	"cache-max-age":     "cache_max_age",
}

// negatedFlagKeys maps flags that switch a default-on setting off.
var negatedFlagKeys = map[string]string{
	"no-simplify":    "simplify",
	"no-assertions":  "assertions",
	"no-assumptions": "assumptions",
}

// LoadConfig layers the configuration: defaults, then the file at path, then
// SUMMARIZER_* environment variables, then the flags the user set. A missing
// file is an error unless path is DefaultConfigPath or empty.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("name", def.Name)
	v.SetDefault("entry", def.Entry)
	v.SetDefault("solver", def.Solver)
	v.SetDefault("solver_command", def.SolverCommand)
	v.SetDefault("int_width", def.IntWidth)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("jobs", def.Jobs)
	v.SetDefault("simplify", def.Simplify)
	v.SetDefault("assertions", def.Assertions)
	v.SetDefault("assumptions", def.Assumptions)
	v.SetDefault("checks.bounds", def.Checks.Bounds)
	v.SetDefault("checks.div_by_zero", def.Checks.DivByZero)
	v.SetDefault("error_label", def.ErrorLabel)
	v.SetDefault("cache_dir", def.CacheDir)
	v.SetDefault("cache_max_age", def.CacheMaxAge)

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
		}
	} else if path != DefaultConfigPath {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	v.SetEnvPrefix("SUMMARIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
		for name, key := range negatedFlagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				off, err := flags.GetBool(name)
				if err != nil {
					return Config{}, err
				}
				v.Set(key, !off)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteConfig stores cfg as YAML at path.
func WriteConfig(path string, cfg Config) error {
	if path == "" {
		path = DefaultConfigPath
	}
	d, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(d)
	return err
}
