package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/logger"
)

// DefaultEnvPrefix is the environment variable prefix bound by LoadConfig.
const DefaultEnvPrefix = "ASYNCHTTP"

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver handles finding config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles finds config and env files for a client.
// Explicit paths win; otherwise the standard locations are searched.
func (r *Resolver) ResolveFiles(name string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = r.first(configSearchPaths(name))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = r.first(envSearchPaths(name))
	}
	return resolved
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configSearchPaths(name string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/config.yml", name),
		fmt.Sprintf("../cmd/%s/config.yml", name),
		fmt.Sprintf("./config/%s.yml", name),
		"./config/config.yml",
		"../config/config.yml",
		"./config.yml",
	}
}

func envSearchPaths(name string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/.env", name),
		fmt.Sprintf("./.env.%s", name),
		"./config/.env",
		"./.env",
		"../.env",
	}
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	EnvPrefix  string // Only variables with this prefix are bound
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvPrefix overrides DefaultEnvPrefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = prefix }
}

// LoadConfig loads configuration into cfg. The YAML file is read first,
// then the .env file is loaded into the process environment and every
// PREFIX_* variable is bound over the file values.
func LoadConfig(name string, cfg interface{}, opts ...LoaderOption) error {
	lc := LoaderConfig{EnvPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(name, lc)

	return loadFromResolvedFiles(name, cfg, files, lc)
}

// Load loads, defaults and validates a config of type T.
func Load[T any, PT interface {
	*T
	Config
}](name string, opts ...LoaderOption) (*T, error) {
	cfg := PT(new(T))
	if err := LoadConfig(name, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return (*T)(cfg), nil
}

func loadFromResolvedFiles(name string, cfg interface{}, files ResolvedFiles, lc LoaderConfig) error {
	log := logger.WithComponent("config")
	v := viper.New()

	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return apperrors.InvalidInput("config_file", err.Error()).WithCause(err)
		}
	}

	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			log.Warn("failed to load .env file", logger.Fields("path", files.EnvFile, logger.FieldError, err.Error()))
		}
	}

	bindEnvVars(v, lc.EnvPrefix)

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for %s: %w", name, err)
	}

	log.Debug("config loaded", logger.Fields("config_file", files.ConfigFile, "env_file", files.EnvFile))
	return nil
}

// bindEnvVars sets every PREFIX_* environment variable on v under each
// nested key shape it could map to.
func bindEnvVars(v *viper.Viper, prefix string) {
	if prefix == "" {
		return
	}
	p := strings.ToUpper(prefix) + "_"
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, p) {
			continue
		}
		for _, variant := range envKeyVariants(strings.TrimPrefix(key, p)) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants returns the candidate viper keys for an env variable name
// with its prefix removed. Underscores are ambiguous: they separate
// sections and also appear inside keys, so every split point is tried.
//
//	POOL_QUEUE_WAIT -> [pool_queue_wait, pool.queue_wait, pool.queue.wait, pool_queue.wait]
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) <= 1 {
		return []string{lower}
	}

	variants := []string{lower}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], "_")+"."+strings.Join(parts[i:], "."))
	}
	return removeDuplicates(variants)
}

func removeDuplicates(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
