// Package config handles all of deadlockd's user-configuration. The fields
// here are all in PascalCase but in your actual config.yml they'll be in
// camelCase. You can view the current default config with `deadlockd
// -config`. Because of the way we merge the user config with the defaults,
// you may need to be careful: if you set a top-level yaml key but give it no
// child values, it will scrap all of the defaults for that section.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/OpenPeeDeeP/xdg"
	yaml "github.com/jesseduffield/yaml"
)

// UserConfig holds all of the user-configurable options.
type UserConfig struct {
	// Scan controls how a detection pass reads process state and how often
	// continuous mode repeats it.
	Scan ScanConfig `yaml:"scan,omitempty"`

	// Capacity bounds the size of the resource allocation graph and the
	// per-process dependency records the analyzer is willing to hold.
	// Exceeding a vertex bound is the GraphFull failure mode from the error
	// taxonomy, not a crash; overflowing a per-process record bound
	// truncates silently.
	Capacity CapacityConfig `yaml:"capacity,omitempty"`

	// Alert configures the out-of-scope SMTP alert dispatcher collaborator.
	// The core never sends mail; this is only carried so a renderer/alerter
	// built against this config has somewhere to read settings from.
	Alert AlertConfig `yaml:"alert,omitempty"`
}

// ScanConfig is for configuring how a pass samples kernel state.
type ScanConfig struct {
	// IntervalSeconds is the sleep between passes in continuous mode. Bound
	// to a finite range by the CLI collaborator; the core does not enforce
	// the bound itself.
	IntervalSeconds int `yaml:"intervalSeconds,omitempty"`

	// ProcRoot overrides the kernel process-table root, normally /proc.
	// Primarily useful for tests that want to point the reader at a fixture
	// directory instead of the real kernel.
	ProcRoot string `yaml:"procRoot,omitempty"`

	// StatusCacheTTL records the time-to-live of the per-process status
	// cache described in the kernel view reader. The reader does not read
	// this field; its cache lifetime is fixed at 5 seconds.
	StatusCacheTTL time.Duration `yaml:"statusCacheTTL,omitempty"`

	// Format selects the out-of-scope report renderer: "text", "json", or
	// "verbose". The core does not interpret this value itself.
	Format string `yaml:"format,omitempty"`
}

// CapacityConfig bounds the resource allocation graph and the dependency
// analyzer's per-process bookkeeping.
type CapacityConfig struct {
	// MaxProcessVertices and MaxResourceVertices bound the RAG. Exceeding
	// either fails the pass with GraphFull rather than silently dropping
	// vertices.
	MaxProcessVertices  int `yaml:"maxProcessVertices,omitempty"`
	MaxResourceVertices int `yaml:"maxResourceVertices,omitempty"`

	// MaxWaitingPIDsPerProcess and MaxWaitingResourcesPerProcess bound the
	// analyzer's per-process waits-on-PID and waiting-resource records.
	// Overflow truncates silently, per the dependency analyzer's design.
	MaxWaitingPIDsPerProcess      int `yaml:"maxWaitingPidsPerProcess,omitempty"`
	MaxWaitingResourcesPerProcess int `yaml:"maxWaitingResourcesPerProcess,omitempty"`
}

// AlertConfig configures the out-of-scope SMTP alert dispatcher.
type AlertConfig struct {
	SMTPHost string   `yaml:"smtpHost,omitempty"`
	SMTPPort int      `yaml:"smtpPort,omitempty"`
	From     string   `yaml:"from,omitempty"`
	To       []string `yaml:"to,omitempty"`
}

// GetDefaultConfig returns the application default configuration. NOTE (to
// contributors, not users): do not default a boolean to true, because false
// is the boolean zero value and this will be ignored when parsing the
// user's config.
func GetDefaultConfig() UserConfig {
	return UserConfig{
		Scan: ScanConfig{
			IntervalSeconds: 30,
			ProcRoot:        "/proc",
			StatusCacheTTL:  5 * time.Second,
			Format:          "text",
		},
		Capacity: CapacityConfig{
			MaxProcessVertices:            65536,
			MaxResourceVertices:           1000000,
			MaxWaitingPIDsPerProcess:      64,
			MaxWaitingResourcesPerProcess: 64,
		},
		Alert: AlertConfig{
			SMTPPort: 25,
		},
	}
}

// AppConfig contains the base configuration fields required for deadlockd.
type AppConfig struct {
	Debug       bool `long:"debug" env:"DEBUG" default:"false"`
	Version     string
	Commit      string
	BuildDate   string
	Name        string
	BuildSource string
	UserConfig  *UserConfig
	ConfigDir   string
}

// NewAppConfig makes a new app config, finding or creating the user's
// config.yml along the way.
func NewAppConfig(name, version, commit, date, buildSource string, debuggingFlag bool) (*AppConfig, error) {
	configDir, err := findOrCreateConfigDir(name)
	if err != nil {
		return nil, err
	}

	userConfig, err := loadUserConfigWithDefaults(configDir)
	if err != nil {
		return nil, err
	}

	appConfig := &AppConfig{
		Name:        name,
		Version:     version,
		Commit:      commit,
		BuildDate:   date,
		Debug:       debuggingFlag || os.Getenv("DEBUG") == "TRUE",
		BuildSource: buildSource,
		UserConfig:  userConfig,
		ConfigDir:   configDir,
	}

	return appConfig, nil
}

func configDirForVendor(vendor string, projectName string) string {
	if envConfigDir := os.Getenv("CONFIG_DIR"); envConfigDir != "" {
		return envConfigDir
	}
	configDirs := xdg.New(vendor, projectName)
	return configDirs.ConfigHome()
}

func findOrCreateConfigDir(projectName string) (string, error) {
	folder := configDirForVendor("", projectName)

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", err
	}

	return folder, nil
}

func loadUserConfigWithDefaults(configDir string) (*UserConfig, error) {
	cfg := GetDefaultConfig()

	return loadUserConfig(configDir, &cfg)
}

func loadUserConfig(configDir string, base *UserConfig) (*UserConfig, error) {
	fileName := filepath.Join(configDir, "config.yml")

	if _, err := os.Stat(fileName); err != nil {
		if os.IsNotExist(err) {
			file, err := os.Create(fileName)
			if err != nil {
				return nil, err
			}
			file.Close()
		} else {
			return nil, err
		}
	}

	content, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(content, base); err != nil {
		return nil, err
	}

	return base, nil
}

// WriteToUserConfig allows you to set a value on the user config to be
// saved. Note that if you set a zero-value, it may be ignored: we use the
// omitempty yaml directive so that we don't write a heap of zero values to
// the user's config.yml.
func (c *AppConfig) WriteToUserConfig(updateConfig func(*UserConfig) error) error {
	userConfig, err := loadUserConfig(c.ConfigDir, &UserConfig{})
	if err != nil {
		return err
	}

	if err := updateConfig(userConfig); err != nil {
		return err
	}

	file, err := os.OpenFile(c.ConfigFilename(), os.O_WRONLY|os.O_CREATE, 0o666)
	if err != nil {
		return err
	}
	defer file.Close()

	return yaml.NewEncoder(file).Encode(userConfig)
}

// ConfigFilename returns the filename of the current config file.
func (c *AppConfig) ConfigFilename() string {
	return filepath.Join(c.ConfigDir, "config.yml")
}
