package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/wonderchat/pkg/storage"
	"github.com/haivivi/wonderchat/pkg/vad"
)

const (
	// DefaultBaseDir is created below the user's home directory.
	DefaultBaseDir = ".wonderchat"
	// DefaultConfigFile is the config file name inside DefaultBaseDir.
	DefaultConfigFile = "config.yaml"
)

// Config is the configuration file.
type Config struct {
	CurrentContext string              `yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `yaml:"contexts,omitempty"`

	path string
}

// Context is one named set of credentials and settings.
type Context struct {
	Name string `yaml:"name"`

	// APIKey is the Gemini API key.
	APIKey string `yaml:"api_key,omitempty"`

	// LiveURL overrides the Live WebSocket endpoint.
	LiveURL string `yaml:"live_url,omitempty"`

	// Model is the Live model; TextModel is used by text chat.
	Model     string `yaml:"model,omitempty"`
	TextModel string `yaml:"text_model,omitempty"`

	Voice    string `yaml:"voice,omitempty"`
	Language string `yaml:"language,omitempty"`

	// DataDir holds the profile and transcript database. Defaults to
	// ~/.wonderchat/data.
	DataDir string `yaml:"data_dir,omitempty"`

	// VAD overrides the default detector settings.
	VAD *vad.Patch `yaml:"vad,omitempty"`

	// Export configures where debug logs and transcripts are archived.
	Export *ExportConfig `yaml:"export,omitempty"`
}

// ExportConfig selects a local directory or an S3 bucket.
type ExportConfig struct {
	Dir string `yaml:"dir,omitempty"`

	Bucket string            `yaml:"bucket,omitempty"`
	Prefix string            `yaml:"prefix,omitempty"`
	S3     storage.S3Config `yaml:"s3,omitempty"`
}

// LoadConfig reads the config file at path, or at the default location when
// path is empty. A missing file yields an empty config that is written on
// the first Save.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, DefaultBaseDir, DefaultConfigFile)
	}
	cfg := &Config{Contexts: make(map[string]*Context), path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, c := range cfg.Contexts {
		c.Name = name
	}
	return cfg, nil
}

// Save writes the config with owner-only permissions.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(c.path, data, 0o600)
}

func (c *Config) Path() string {
	return c.path
}

// SetContext adds or replaces a context. The first context added becomes
// the current one.
func (c *Config) SetContext(name string, ctx *Context) error {
	if name == "" {
		return fmt.Errorf("context name is required")
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// ResolveContext returns the named context, or the current one when name is
// empty.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return nil, fmt.Errorf("no context selected; run 'wonderchat config add-context'")
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ContextNames returns the context names in sorted order.
func (c *Config) ContextNames() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ResolveDataDir returns DataDir with a leading ~ expanded, or the default
// data directory.
func (ctx *Context) ResolveDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch {
	case ctx.DataDir == "":
		return filepath.Join(home, DefaultBaseDir, "data"), nil
	case ctx.DataDir == "~":
		return home, nil
	case strings.HasPrefix(ctx.DataDir, "~/"):
		return filepath.Join(home, ctx.DataDir[2:]), nil
	}
	return ctx.DataDir, nil
}

// MaskAPIKey hides all but the first and last four characters.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
