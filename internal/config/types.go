// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// RegistryFile records each archive in a YAML build record next to it.
	RegistryFile RegistryKind = "file"
	// RegistryS3 uploads each archive to an S3 compatible object store.
	RegistryS3 RegistryKind = "s3"
	// RegistryNone disables registration.
	RegistryNone RegistryKind = "none"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// DefaultVersion is used when neither configuration nor flags set a version.
	DefaultVersion = "0.0.0-SNAPSHOT"
	// DefaultOutputDir is the output directory relative to the project base dir.
	DefaultOutputDir = "target"
	// DefaultExtension is the archive file extension.
	DefaultExtension = "sln"
	// DefaultRecordFile is the build record written by the file registry.
	DefaultRecordFile = "build-record.yaml"
)

var (
	// ErrInvalidRegistryKind is returned when a RegistryKind value is not recognized.
	ErrInvalidRegistryKind = errors.New("invalid registry kind")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// RegistryKind selects where packed archives are registered.
	RegistryKind string

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// LogLevel is the minimum level of log messages written to stderr.
	LogLevel string

	// InvalidValueError is returned when an enumerated setting holds an unknown value.
	// It wraps the setting's sentinel for errors.Is() compatibility.
	InvalidValueError struct {
		Field    string
		Value    string
		sentinel error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig and every field error.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the slnpack configuration.
	Config struct {
		Project  ProjectConfig  `json:"project" mapstructure:"project"`
		Pack     PackConfig     `json:"pack" mapstructure:"pack"`
		Registry RegistryConfig `json:"registry" mapstructure:"registry"`
		UI       UIConfig       `json:"ui" mapstructure:"ui"`
	}

	// ProjectConfig describes the project being packed.
	ProjectConfig struct {
		// ArtifactID names the archive. Empty means the base name of the project dir.
		ArtifactID string `json:"artifact_id" mapstructure:"artifact_id"`
		Version    string `json:"version" mapstructure:"version"`
		// BaseDir is the project base directory, relative to the working directory.
		BaseDir string `json:"base_dir" mapstructure:"base_dir"`
		// Properties are read from the file only; their names keep their case.
		Properties map[string]string `json:"properties" mapstructure:"-"`
	}

	// PackConfig controls the archive location and name.
	PackConfig struct {
		OutputDir string `json:"output_dir" mapstructure:"output_dir"`
		Extension string `json:"extension" mapstructure:"extension"`
	}

	// RegistryConfig selects and configures the artifact registry.
	RegistryConfig struct {
		Kind       RegistryKind `json:"kind" mapstructure:"kind"`
		RecordFile string       `json:"record_file" mapstructure:"record_file"`
		S3         S3Config     `json:"s3" mapstructure:"s3"`
	}

	// S3Config holds the object store connection settings.
	S3Config struct {
		Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
		Bucket    string `json:"bucket" mapstructure:"bucket"`
		Region    string `json:"region" mapstructure:"region"`
		AccessKey string `json:"access_key" mapstructure:"access_key"`
		SecretKey string `json:"secret_key" mapstructure:"secret_key"`
		UseSSL    bool   `json:"use_ssl" mapstructure:"use_ssl"`
		Prefix    string `json:"prefix" mapstructure:"prefix"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// LogLevel overrides the level implied by Verbose when set.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Version:    DefaultVersion,
			BaseDir:    ".",
			Properties: map[string]string{},
		},
		Pack: PackConfig{
			OutputDir: DefaultOutputDir,
			Extension: DefaultExtension,
		},
		Registry: RegistryConfig{
			Kind:       RegistryFile,
			RecordFile: DefaultRecordFile,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// String returns the string representation of the RegistryKind.
func (k RegistryKind) String() string { return string(k) }

// Validate returns an error if the kind is not file, s3 or none.
func (k RegistryKind) Validate() error {
	switch k {
	case RegistryFile, RegistryS3, RegistryNone:
		return nil
	default:
		return &InvalidValueError{Field: "registry.kind", Value: string(k), sentinel: ErrInvalidRegistryKind}
	}
}

// String returns the string representation of the ColorScheme.
func (c ColorScheme) String() string { return string(c) }

// Validate returns an error if the scheme is not auto, dark or light.
func (c ColorScheme) Validate() error {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidValueError{Field: "ui.color_scheme", Value: string(c), sentinel: ErrInvalidColorScheme}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Validate accepts the empty level (derive from Verbose) and the four named levels.
func (l LogLevel) Validate() error {
	switch l {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidValueError{Field: "ui.log_level", Value: string(l), sentinel: ErrInvalidLogLevel}
	}
}

// Error implements the error interface.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: unknown value %q", e.Field, e.Value)
}

// Unwrap returns the setting's sentinel error.
func (e *InvalidValueError) Unwrap() error { return e.sentinel }

// Validate checks the invariants the schema cannot enforce once environment
// overrides have been applied.
func (c *Config) Validate() error {
	var errs []error
	for _, err := range []error{
		c.Registry.Kind.Validate(),
		c.UI.ColorScheme.Validate(),
		c.UI.LogLevel.Validate(),
	} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if strings.TrimSpace(c.Pack.OutputDir) == "" {
		errs = append(errs, errors.New("pack.output_dir: must not be empty"))
	}
	if strings.TrimSpace(c.Pack.Extension) == "" {
		errs = append(errs, errors.New("pack.extension: must not be empty"))
	}
	if c.Registry.Kind == RegistryS3 {
		if c.Registry.S3.Endpoint == "" {
			errs = append(errs, errors.New("registry.s3.endpoint: required when registry.kind is s3"))
		}
		if c.Registry.S3.Bucket == "" {
			errs = append(errs, errors.New("registry.s3.bucket: required when registry.kind is s3"))
		}
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
