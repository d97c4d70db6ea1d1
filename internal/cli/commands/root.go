package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/cli/config"
	"github.com/conduit-lang/modelkit/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// reported wraps an error whose details were already written to stderr
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	configPath string
	noColor    bool
}

// environment is the loaded configuration and logger of one command run
type environment struct {
	config  *config.Config
	logger  *zap.Logger
	noColor bool
}

func (o *globalOptions) load(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), o.noColor))
		return nil, reported{err}
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		logger = zap.NewNop()
	}
	noColor := o.noColor || cfg.Output.NoColor
	if noColor {
		color.NoColor = true
	}
	return &environment{config: cfg, logger: logger, noColor: noColor}, nil
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "modelkit",
		Short: "Inspect and validate entity models",
		Long: color.CyanString(`modelkit - entity metadata tooling

modelkit builds an inheritance-aware entity model from a YAML definition,
resolves configuration from conventions, annotations and explicit settings,
and finalizes it into the read-only form used for change tracking.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: ./modelkit.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewInspectCommand(opts))
	rootCmd.AddCommand(NewValidateCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the modelkit version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			table := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			table.AddRow("modelkit version", Version)
			table.AddRow("Git commit", GitCommit)
			table.AddRow("Build date", BuildDate)
			table.AddRow("Go version", goVer)
			table.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var r reported
		if errors.As(err, &r) {
			return err
		}
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
