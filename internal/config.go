package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/runeport/internal/frontmatter"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Source  SourceConfig      `yaml:"source"`
	Dest    DestConfig        `yaml:"dest"`
	Convert ConvertConfig     `yaml:"convert"`
	Assets  AssetsConfig      `yaml:"assets"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Dest.Validate(); err != nil {
		return err
	}
	if err := c.Convert.Validate(); err != nil {
		return err
	}
	if err := c.Assets.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds preview HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig locates the export tree.
type SourceConfig struct {
	Path string `yaml:"path"`
	// ImageSearchPattern matches in-body image references.
	ImageSearchPattern string `yaml:"image_search_pattern"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.ImageSearchPattern, validation.Required),
	)
}

// DestConfig locates the destination vault.
type DestConfig struct {
	Path        string `yaml:"path"`
	ResourceDir string `yaml:"resource_dir"`
	// Flatten drops the per-template folder and writes all documents into
	// the vault root.
	Flatten bool `yaml:"flatten"`
}

// Validate validates the destination configuration.
func (c *DestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.ResourceDir, validation.Required),
	)
}

// ConvertConfig controls the conversion pipeline.
type ConvertConfig struct {
	// ContentTags are rendered as body sections; tags referenced only by
	// Fields are unwrapped after their values move to front-matter.
	ContentTags   []string            `yaml:"content_tags"`
	Fields        []frontmatter.Field `yaml:"fields"`
	AttemptBBCode bool                `yaml:"attempt_bbcode"`
	Workers       int                 `yaml:"workers"`
}

// Validate validates the conversion configuration.
func (c *ConvertConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0), validation.Max(64)),
	); err != nil {
		return err
	}
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("convert: field mapping with empty name")
		}
		if len(f.Tags) == 0 {
			return fmt.Errorf("convert: field %q maps no tags", f.Name)
		}
	}
	return nil
}

// AssetsConfig controls remote image handling.
type AssetsConfig struct {
	DownloadRemote bool   `yaml:"download_remote"`
	BaseURL        string `yaml:"base_url"`
}

// Validate validates the assets configuration.
func (c *AssetsConfig) Validate() error {
	if c.DownloadRemote && c.BaseURL == "" {
		return fmt.Errorf("assets: download_remote requires base_url")
	}
	return nil
}

// CatalogConfig holds the run catalog database location. An empty path
// disables the catalog (and with it incremental reconversion, the preview
// API, and the MCP server).
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds preview server authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Path:               "./export",
			ImageSearchPattern: `/uploads/images/[A-Za-z0-9./_-]+`,
		},
		Dest: DestConfig{
			Path:        "./vault",
			ResourceDir: "images",
		},
		Convert: ConvertConfig{
			ContentTags:   []string{"description"},
			AttemptBBCode: true,
			Workers:       1,
		},
		Catalog: CatalogConfig{
			Path: "./runeport.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
