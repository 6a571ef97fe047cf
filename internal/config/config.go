// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/slnpack/slnpack/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "slnpack"
	// ConfigFileName is the name of the user config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// ProjectConfigFileName is the config file looked up in the project directory.
	ProjectConfigFileName = AppName + "." + ConfigFileExt
	// EnvPrefix prefixes environment overrides (SLNPACK_PACK_OUTPUT_DIR).
	EnvPrefix = "SLNPACK"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the slnpack user configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// UserConfigPath returns the path of the user config file.
func UserConfigPath(configDirPath string) (string, error) {
	cfgDir, err := configDirWithOverride(configDirPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// ProjectConfigPath returns the path of the project config file in baseDir.
func ProjectConfigPath(baseDir string) string {
	return filepath.Join(baseDir, ProjectConfigFileName)
}

// locate resolves which config file applies, or "" when defaults apply.
func locate(opts LoadOptions) (string, error) {
	// A custom config file path set via --config is used exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'slnpack config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	if projectPath := ProjectConfigPath(opts.BaseDir); fileExists(projectPath) {
		return projectPath, nil
	}

	userPath, err := UserConfigPath(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if fileExists(userPath) {
		return userPath, nil
	}

	return "", nil
}

// loadWithOptions performs option-driven config loading without touching
// package-level state other than test overrides.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := locate(opts)
	if err != nil {
		return nil, "", err
	}

	properties := map[string]string{}
	if resolvedPath != "" {
		properties, err = loadCUEIntoViper(v, resolvedPath)
		if err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'slnpack config --help' for configuration options").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Project.Properties = properties

	// Environment overrides bypass the CUE schema.
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check SLNPACK_* environment variables for typos").
			WithSuggestion("Set registry.s3.endpoint and registry.s3.bucket when using the s3 registry").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("project.artifact_id", defaults.Project.ArtifactID)
	v.SetDefault("project.version", defaults.Project.Version)
	v.SetDefault("project.base_dir", defaults.Project.BaseDir)
	v.SetDefault("pack.output_dir", defaults.Pack.OutputDir)
	v.SetDefault("pack.extension", defaults.Pack.Extension)
	v.SetDefault("registry.kind", string(defaults.Registry.Kind))
	v.SetDefault("registry.record_file", defaults.Registry.RecordFile)
	v.SetDefault("registry.s3.endpoint", defaults.Registry.S3.Endpoint)
	v.SetDefault("registry.s3.bucket", defaults.Registry.S3.Bucket)
	v.SetDefault("registry.s3.region", defaults.Registry.S3.Region)
	v.SetDefault("registry.s3.access_key", defaults.Registry.S3.AccessKey)
	v.SetDefault("registry.s3.secret_key", defaults.Registry.S3.SecretKey)
	v.SetDefault("registry.s3.use_ssl", defaults.Registry.S3.UseSSL)
	v.SetDefault("registry.s3.prefix", defaults.Registry.S3.Prefix)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))
	v.SetDefault("ui.log_level", string(defaults.UI.LogLevel))
}

func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. Project properties are returned
// separately: their names contain dots, which Viper treats as key separators.
func loadCUEIntoViper(v *viper.Viper, path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, path); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return nil, formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return nil, formatCUEError(err, path)
	}

	properties := extractProperties(configMap)

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	return properties, nil
}

// extractProperties removes project.properties from configMap and returns it.
func extractProperties(configMap map[string]any) map[string]string {
	properties := map[string]string{}
	project, ok := configMap["project"].(map[string]any)
	if !ok {
		return properties
	}
	raw, ok := project["properties"].(map[string]any)
	if !ok {
		return properties
	}
	for name, value := range raw {
		properties[name] = fmt.Sprint(value)
	}
	delete(project, "properties")
	return properties
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file at path unless one exists.
// It reports whether a file was created.
func CreateDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := Save(DefaultConfig(), path); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes cfg as CUE to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// slnpack configuration file\n\n")

	sb.WriteString("project: {\n")
	if cfg.Project.ArtifactID != "" {
		fmt.Fprintf(&sb, "\tartifact_id: %q\n", cfg.Project.ArtifactID)
	}
	fmt.Fprintf(&sb, "\tversion:     %q\n", cfg.Project.Version)
	fmt.Fprintf(&sb, "\tbase_dir:    %q\n", cfg.Project.BaseDir)
	if len(cfg.Project.Properties) > 0 {
		sb.WriteString("\tproperties: {\n")
		names := make([]string, 0, len(cfg.Project.Properties))
		for name := range cfg.Project.Properties {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "\t\t%q: %q\n", name, cfg.Project.Properties[name])
		}
		sb.WriteString("\t}\n")
	} else {
		sb.WriteString("\t// properties: \"dotnet.pack.files\": \"files=bin/Release/*.dll to-dir=lib\"\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\npack: {\n")
	fmt.Fprintf(&sb, "\toutput_dir: %q\n", cfg.Pack.OutputDir)
	fmt.Fprintf(&sb, "\textension:  %q\n", cfg.Pack.Extension)
	sb.WriteString("}\n")

	sb.WriteString("\nregistry: {\n")
	fmt.Fprintf(&sb, "\tkind:        %q\n", cfg.Registry.Kind)
	fmt.Fprintf(&sb, "\trecord_file: %q\n", cfg.Registry.RecordFile)
	// Credentials are never written; use SLNPACK_REGISTRY_S3_ACCESS_KEY and
	// SLNPACK_REGISTRY_S3_SECRET_KEY.
	if s3 := cfg.Registry.S3; s3.Endpoint != "" || s3.Bucket != "" {
		sb.WriteString("\ts3: {\n")
		fmt.Fprintf(&sb, "\t\tendpoint: %q\n", s3.Endpoint)
		fmt.Fprintf(&sb, "\t\tbucket:   %q\n", s3.Bucket)
		if s3.Region != "" {
			fmt.Fprintf(&sb, "\t\tregion:   %q\n", s3.Region)
		}
		if s3.Prefix != "" {
			fmt.Fprintf(&sb, "\t\tprefix:   %q\n", s3.Prefix)
		}
		fmt.Fprintf(&sb, "\t\tuse_ssl:  %v\n", s3.UseSSL)
		sb.WriteString("\t}\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	if cfg.UI.LogLevel != "" {
		fmt.Fprintf(&sb, "\tlog_level:    %q\n", cfg.UI.LogLevel)
	}
	sb.WriteString("}\n")

	return sb.String()
}
