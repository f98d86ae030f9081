package cfg

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bronystylecrazy/ultraweave/build"
	"github.com/bronystylecrazy/ultraweave/inject"
	"github.com/bronystylecrazy/ultraweave/log"
	"github.com/bronystylecrazy/ultraweave/vm"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ULTRAWEAVE_LOG_LEVEL.
const EnvPrefix = "ULTRAWEAVE"

type Config struct {
	Log       log.Config      `mapstructure:"log"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Transform TransformConfig `mapstructure:"transform"`
	VM        VMConfig        `mapstructure:"vm"`
}

type RegistryConfig struct {
	DiagnosticsLimit int  `mapstructure:"diagnostics_limit"`
	RebindOnStart    bool `mapstructure:"rebind_on_start"`
}

type TransformConfig struct {
	Verify bool `mapstructure:"verify"`
}

type VMConfig struct {
	Verify   bool `mapstructure:"verify"`
	MaxDepth int  `mapstructure:"max_depth"`
}

type option interface {
	apply(*configState)
}

type optionFunc func(*configState)

func (f optionFunc) apply(s *configState) { f(s) }

// Option configures Load.
type Option = option

type configState struct {
	sourceFile   string
	configType   string
	envPrefix    string
	keyReplacer  *strings.Replacer
	automaticEnv bool
	optional     bool
	defaults     map[string]any
	hooks        []func(*viper.Viper) error
}

func WithSourceFile(path string) Option {
	return optionFunc(func(s *configState) { s.sourceFile = path })
}

func WithType(kind string) Option {
	return optionFunc(func(s *configState) { s.configType = kind })
}

func WithOptional() Option {
	return optionFunc(func(s *configState) { s.optional = true })
}

func WithEnvPrefix(prefix string) Option {
	return optionFunc(func(s *configState) { s.envPrefix = prefix })
}

func WithNoEnv() Option {
	return optionFunc(func(s *configState) {
		s.automaticEnv = false
		s.envPrefix = ""
	})
}

func WithDefault(key string, value any) Option {
	return optionFunc(func(s *configState) { s.defaults[key] = value })
}

func WithViper(fn func(*viper.Viper) error) Option {
	return optionFunc(func(s *configState) {
		if fn != nil {
			s.hooks = append(s.hooks, fn)
		}
	})
}

// Defaults returns the built-in values of every key.
func Defaults() map[string]any {
	level := "info"
	if build.IsDevelopment() {
		level = "debug"
	}
	return map[string]any{
		"log.level":                  level,
		"log.drop_fields":            []string{},
		"registry.diagnostics_limit": inject.DefaultDiagnosticsLimit,
		"registry.rebind_on_start":   true,
		"transform.verify":           true,
		"vm.verify":                  false,
		"vm.max_depth":               vm.DefaultMaxDepth,
	}
}

// Load reads the defaults, then the optional source file, then environment
// overrides.
func Load(opts ...Option) (Config, error) {
	state := configState{
		envPrefix:    EnvPrefix,
		keyReplacer:  strings.NewReplacer(".", "_", "-", "_"),
		automaticEnv: true,
		defaults:     Defaults(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&state)
		}
	}
	var out Config
	v, err := load(state, state.sourceFile)
	if err != nil {
		return out, err
	}
	if err := decode(v, &out); err != nil {
		return out, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}

func load(cfg configState, path string) (*viper.Viper, error) {
	v := viper.New()
	if cfg.envPrefix != "" {
		v.SetEnvPrefix(cfg.envPrefix)
	}
	if cfg.keyReplacer != nil {
		v.SetEnvKeyReplacer(cfg.keyReplacer)
	}
	if cfg.automaticEnv {
		v.AutomaticEnv()
	}
	if path != "" {
		v.SetConfigFile(path)
	}
	if cfg.configType != "" {
		v.SetConfigType(cfg.configType)
	}
	for k, val := range cfg.defaults {
		v.SetDefault(k, val)
	}
	for _, hook := range cfg.hooks {
		if err := hook(v); err != nil {
			return nil, err
		}
	}
	if path == "" {
		return v, nil
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if cfg.optional && (errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)) {
			return v, nil
		}
		if cleaned, ok := sanitize(path); ok {
			if cfg.configType == "" {
				if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
					v.SetConfigType(ext)
				}
			}
			if rerr := v.ReadConfig(bytes.NewReader(cleaned)); rerr == nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

// sanitize strips byte order marks and zero-width spaces some editors leave
// in config files.
func sanitize(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	changed := false
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if i+2 < len(data) && data[i] == 0xEF && data[i+1] == 0xBB && data[i+2] == 0xBF {
			i += 2
			changed = true
			continue
		}
		if i+2 < len(data) && data[i] == 0xE2 && data[i+1] == 0x80 && data[i+2] == 0x8B {
			i += 2
			changed = true
			continue
		}
		out = append(out, data[i])
	}
	if changed {
		return out, true
	}
	return nil, false
}

func decode(v *viper.Viper, out *Config) error {
	return v.Unmarshal(out, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
}
