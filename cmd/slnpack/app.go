// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/slnpack/slnpack/internal/config"
	"github.com/slnpack/slnpack/internal/packager"
	"github.com/slnpack/slnpack/internal/project"
	"github.com/slnpack/slnpack/internal/registry"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. All command handlers
	// receive an App and reach configuration and registries through it.
	App struct {
		Config      ConfigProvider
		NewRegistry RegistryFactory
		stdout      io.Writer
		stderr      io.Writer
		logger      *log.Logger

		// Global flag values.
		verbose    bool
		configPath string
		workDir    string

		// issueStyle is the glamour style used for issue guides.
		issueStyle string
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config      ConfigProvider
		NewRegistry RegistryFactory
		Stdout      io.Writer
		Stderr      io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
		Locate(opts config.LoadOptions) (string, error)
	}

	// RegistryFactory builds the registry for a pack.
	RegistryFactory func(cfg config.RegistryConfig, outputDir string, logger *log.Logger) (registry.Registry, error)

	// projectFlags are the per-command overrides of the project configuration.
	projectFlags struct {
		defines    []string
		artifactID string
		version    string
		outputDir  string
		registry   string
	}

	// session is one loaded project, ready to pack.
	session struct {
		cfg      *config.Config
		project  *project.Descriptor
		packager *packager.Packager
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.NewRegistry == nil {
		deps.NewRegistry = func(cfg config.RegistryConfig, outputDir string, logger *log.Logger) (registry.Registry, error) {
			return registry.New(cfg, outputDir, logger)
		}
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	return &App{
		Config:      deps.Config,
		NewRegistry: deps.NewRegistry,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
		logger:      log.NewWithOptions(deps.Stderr, log.Options{Prefix: config.AppName}),
		issueStyle:  "auto",
	}
}

// loadOptions returns the config lookup options for the current flags.
func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: a.configPath,
		BaseDir:        a.workDir,
	}
}

// loadConfig loads configuration and applies its UI settings.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return nil, err
	}
	a.applyUI(cfg.UI)
	return cfg, nil
}

// applyUI sets the log level and color scheme. ui.log_level refines
// ui.verbose, and --verbose wins over both.
func (a *App) applyUI(ui config.UIConfig) {
	level := log.InfoLevel
	if ui.Verbose {
		level = log.DebugLevel
	}
	if ui.LogLevel != "" {
		if parsed, err := log.ParseLevel(string(ui.LogLevel)); err == nil {
			level = parsed
		}
	}
	if a.verbose {
		level = log.DebugLevel
	}
	a.logger.SetLevel(level)

	switch ui.ColorScheme {
	case config.ColorSchemeDark:
		lipgloss.SetHasDarkBackground(true)
		a.issueStyle = "dark"
	case config.ColorSchemeLight:
		lipgloss.SetHasDarkBackground(false)
		a.issueStyle = "light"
	default:
		a.issueStyle = "auto"
	}
}

// newSession loads configuration, applies flag overrides and builds the packager.
func (a *App) newSession(ctx context.Context, flags projectFlags) (*session, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	if flags.outputDir != "" {
		cfg.Pack.OutputDir = flags.outputDir
	}
	if flags.registry != "" {
		cfg.Registry.Kind = config.RegistryKind(flags.registry)
		if err := cfg.Registry.Kind.Validate(); err != nil {
			return nil, err
		}
	}

	defines, err := project.ParseDefines(flags.defines)
	if err != nil {
		return nil, err
	}

	workDir := a.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}

	proj, err := project.New(workDir, cfg.Project, project.Overrides{
		ArtifactID: flags.artifactID,
		Version:    flags.version,
		Defines:    defines,
	})
	if err != nil {
		return nil, err
	}

	outputDir := packager.ResolveOutputDir(proj.ProjectBaseDir(), cfg.Pack.OutputDir)
	reg, err := a.NewRegistry(cfg.Registry, outputDir, a.logger)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		project: proj,
		packager: packager.New(proj, reg,
			packager.WithOutputDir(cfg.Pack.OutputDir),
			packager.WithExtension(cfg.Pack.Extension),
			packager.WithLogger(a.logger),
		),
	}, nil
}
