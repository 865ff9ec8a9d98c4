// Package config loads roux.yaml and the environment overlay that governs
// where the source tree lives and which providers back the cache and the
// embedder.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// CacheDirName is the side-car directory under the source root, always
// excluded from watching (spec §6.1).
const CacheDirName = ".roux"

// StoreTypeDocstore is the only supported Cache backend for MVP (spec §6.1).
const StoreTypeDocstore = "docstore"

// EmbeddingTypeLocal names the MVP embedder provider (spec §6.1).
const EmbeddingTypeLocal = "local"

// EmbeddingTypeNone registers no embedder, so capability gating leaves
// semantic search out of the tool catalog (spec §4.9).
const EmbeddingTypeNone = "none"

// Config is the resolved roux.yaml + environment configuration.
type Config struct {
	SourceRoot    string
	StoreType     string
	EmbeddingType string
	EmbeddingDims int
	DebounceMS    int
	Verbose       bool
}

// Load reads roux.yaml from workingDir (falling back to the process's
// current directory; ancestors are not searched) and overlays
// ROUX_-prefixed environment variables, the same cascade the teacher's CLI
// config loader uses for .taskwing.yaml.
func Load(workingDir string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("ROUX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("roux")
	v.SetConfigType("yaml")
	v.AddConfigPath(workingDir)
	v.AddConfigPath(".")

	v.SetDefault("source.root", workingDir)
	v.SetDefault("providers.store.type", StoreTypeDocstore)
	v.SetDefault("embedding.type", EmbeddingTypeLocal)
	v.SetDefault("embedding.dimensions", 64)
	v.SetDefault("watcher.debounce_ms", 100)
	v.SetDefault("verbose", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read roux.yaml: %w", err)
		}
		// Absent config file is not an error; defaults (plus env) apply.
	}

	root, err := filepath.Abs(v.GetString("source.root"))
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}

	cfg := &Config{
		SourceRoot:    root,
		StoreType:     v.GetString("providers.store.type"),
		EmbeddingType: v.GetString("embedding.type"),
		EmbeddingDims: v.GetInt("embedding.dimensions"),
		DebounceMS:    v.GetInt("watcher.debounce_ms"),
		Verbose:       v.GetBool("verbose"),
	}
	return cfg, nil
}

// CacheDir returns the side-car cache directory for the configured source
// root, creating it if absent.
func (c *Config) CacheDir() (string, error) {
	dir := filepath.Join(c.SourceRoot, CacheDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}
	return dir, nil
}

// WriteDefault writes a starter roux.yaml to dir, used by `roux init`.
func WriteDefault(dir string) (string, error) {
	path := filepath.Join(dir, "roux.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("roux.yaml already exists at %s", path)
	}
	content := `# Roux configuration
providers:
  store:
    type: docstore

embedding:
  type: local
  dimensions: 64

watcher:
  debounce_ms: 100
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write roux.yaml: %w", err)
	}
	return path, nil
}
