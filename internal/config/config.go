package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// SharePointConfig holds the Microsoft Graph credentials and addressing for
// changelog publication.
type SharePointConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	SiteHost     string `mapstructure:"site_host"`
	SitePath     string `mapstructure:"site_path"`
	DriveName    string `mapstructure:"drive_name"`
	Folder       string `mapstructure:"folder"`
	RemoteName   string `mapstructure:"remote_name"`
}

// TeamsConfig holds the chat-notification webhook settings.
type TeamsConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// RenderConfig holds parameters passed to the drawio binary.
type RenderConfig struct {
	BinPath string  `mapstructure:"bin_path"`
	Scale   float64 `mapstructure:"scale"`
	Quality int     `mapstructure:"quality"`
}

// Config holds all runtime configuration for a diagrams pipeline run.
// Values are populated from .diagrams.yaml, DIAGRAMS_* env vars, and CLI flags.
type Config struct {
	WorkDir       string `mapstructure:"work_dir"`
	DiagramsDir   string `mapstructure:"diagrams_dir"`
	OutputDir     string `mapstructure:"output_dir"`
	ChangelogPath string `mapstructure:"changelog_path"`
	CounterPath   string `mapstructure:"counter_path"`
	VersionsPath  string `mapstructure:"versions_path"`
	StatePath     string `mapstructure:"state_path"`
	TelemetryPath string `mapstructure:"telemetry_path"`
	SummaryPath   string `mapstructure:"summary_path"`
	LogPath       string `mapstructure:"log_path"`

	// RegistryBackend selects the identifier/version store: "file" or "sqlite".
	RegistryBackend string `mapstructure:"registry_backend"`
	RegistryDBPath  string `mapstructure:"registry_db_path"`

	// SpecificFile limits processing to a single diagram path.
	SpecificFile string `mapstructure:"specific_file"`

	Render     RenderConfig     `mapstructure:"render"`
	SharePoint SharePointConfig `mapstructure:"sharepoint"`
	Teams      TeamsConfig      `mapstructure:"teams"`

	Verbose bool `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("work_dir", ".")
	viper.SetDefault("diagrams_dir", "diagrams")
	viper.SetDefault("output_dir", "diagrams/png")
	viper.SetDefault("changelog_path", "diagrams/CHANGELOG.csv")
	viper.SetDefault("counter_path", "diagrams/.counter")
	viper.SetDefault("versions_path", "diagrams/.versions")
	viper.SetDefault("state_path", "diagrams/pipeline.state.toml")
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("summary_path", "")
	viper.SetDefault("log_path", "")
	viper.SetDefault("registry_backend", "file")
	viper.SetDefault("registry_db_path", "diagrams/.registry.db")
	viper.SetDefault("specific_file", "")
	viper.SetDefault("render.bin_path", "drawio")
	viper.SetDefault("render.scale", 2.0)
	viper.SetDefault("render.quality", 100)
	viper.SetDefault("sharepoint.site_path", "")
	viper.SetDefault("sharepoint.drive_name", "Documents")
	viper.SetDefault("sharepoint.folder", "Diagrams")
	viper.SetDefault("sharepoint.remote_name", "CHANGELOG.csv")
	viper.SetDefault("verbose", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.RegistryBackend != "file" && cfg.RegistryBackend != "sqlite" {
		return Config{}, fmt.Errorf("config: unknown registry_backend %q (want file or sqlite)", cfg.RegistryBackend)
	}
	return cfg, nil
}

// ResolvePath anchors a configured relative path at WorkDir so commands work
// no matter where the process was started. Absolute paths and empty values
// pass through.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.WorkDir == "" || c.WorkDir == "." {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// ErrMissingCredentials indicates mandatory SharePoint credentials are absent.
// This is the one configuration failure that aborts a whole run before any
// file is touched.
var ErrMissingCredentials = errors.New("missing sharepoint credentials")

// ValidateSharePoint checks that every field required for a Graph upload is set.
func (c *Config) ValidateSharePoint() error {
	var missing []string
	if c.SharePoint.TenantID == "" {
		missing = append(missing, "sharepoint.tenant_id")
	}
	if c.SharePoint.ClientID == "" {
		missing = append(missing, "sharepoint.client_id")
	}
	if c.SharePoint.ClientSecret == "" {
		missing = append(missing, "sharepoint.client_secret")
	}
	if c.SharePoint.SiteHost == "" {
		missing = append(missing, "sharepoint.site_host")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}
