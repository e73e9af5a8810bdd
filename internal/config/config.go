package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds station settings. The sudo password may come from here or be
// supplied per call; the engine never caches it beyond a single invocation.
type Config struct {
	LogDir  string `yaml:"log_dir,omitempty"`
	CertDir string `yaml:"cert_dir,omitempty"`

	SudoPassword string `yaml:"sudo_password,omitempty"`

	DefaultBadblocksMode string `yaml:"default_badblocks_mode,omitempty"`
	DefaultFioPreset     string `yaml:"default_fio_preset,omitempty"`
	DefaultEraseStandard string `yaml:"default_erase_standard,omitempty"`

	ShowSystemDisks bool `yaml:"show_system_disks"`

	// DatabasePath overrides the audit database location.
	DatabasePath string `yaml:"database_path,omitempty"`

	// StorcliBin overrides the controller tool binary name.
	StorcliBin string `yaml:"storcli_bin,omitempty"`
}

var defaultConfig = Config{
	LogDir:               expand("~/sanistation_logs"),
	CertDir:              expand("~/sanistation_logs/certificates"),
	DefaultBadblocksMode: "read-only",
	DefaultFioPreset:     "quick-read",
	DefaultEraseStandard: "secure-erase",
}

// Load reads the config from path, or from the first default location that
// exists. A missing or unreadable file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		candidates := []string{
			"/etc/sanistation/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/sanistation/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Apply defaults for anything the file left empty
	if cfg.LogDir == "" {
		cfg.LogDir = defaultConfig.LogDir
	}
	if cfg.CertDir == "" {
		cfg.CertDir = defaultConfig.CertDir
	}
	if cfg.DefaultBadblocksMode == "" {
		cfg.DefaultBadblocksMode = defaultConfig.DefaultBadblocksMode
	}
	if cfg.DefaultFioPreset == "" {
		cfg.DefaultFioPreset = defaultConfig.DefaultFioPreset
	}
	if cfg.DefaultEraseStandard == "" {
		cfg.DefaultEraseStandard = defaultConfig.DefaultEraseStandard
	}

	return &cfg, nil
}

// WipeLogPath is the operator-facing CSV log location.
func (c *Config) WipeLogPath() string {
	return filepath.Join(c.LogDir, "wipe_log.csv")
}

func expand(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
