package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/props-override/pkg/audit"
	"github.com/telekom/props-override/pkg/cli/output"
	"github.com/telekom/props-override/pkg/config"
	"github.com/telekom/props-override/pkg/policy"
	"github.com/telekom/props-override/pkg/system"
)

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
}

type runtimeState struct {
	configPath   string
	cfg          config.Config
	loaded       bool
	outputFormat string
	debug        bool
	writer       io.Writer
	log          *zap.Logger
}

type runtimeKey struct{}

// DefaultConfig leaves the path empty so PROPS_CONFIG_PATH and then
// ./config.yaml are consulted.
func DefaultConfig() Config {
	return Config{OutputWriter: os.Stdout}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{configPath: cfg.ConfigPath, writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:          "propsctl",
		Short:        "Device identity override policy",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("PROPS_OUTPUT")
			}
			if !rt.debug {
				rt.debug = strings.EqualFold(os.Getenv("PROPS_DEBUG"), "true")
			}
			if _, err := output.ParseFormat(rt.outputFormat); err != nil {
				return err
			}

			// version and completion work without a config or logger
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}

			log, err := system.NewLogger(rt.debug)
			if err != nil {
				return err
			}
			rt.log = log
			return rt.loadConfig()
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file (default $PROPS_CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug logging")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewEvaluateCommand(),
		NewFeatureCommand(),
		NewAttestCommand(),
		NewProfilesCommand(),
		NewConfigCommand(),
		NewServeCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) loadConfig() error {
	cfg, err := config.LoadOrDefault(rt.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg
	rt.loaded = true
	return nil
}

func (rt *runtimeState) OutputFormat() output.Format {
	f, err := output.ParseFormat(rt.outputFormat)
	if err != nil {
		return output.FormatTable
	}
	return f
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Logger() *zap.Logger {
	if rt.log != nil {
		return rt.log
	}
	return zap.NewNop()
}

// Registry builds the profile registry from the loaded configuration.
func (rt *runtimeState) Registry() *policy.Registry {
	sets := policy.DefaultMatchSets().Extend(rt.cfg.Matching)
	return policy.NewRegistry(rt.cfg.Overrides, sets)
}

// Auditor returns the configured audit manager, or nil when auditing is
// disabled. Callers close it when done.
func (rt *runtimeState) Auditor() (*audit.Manager, error) {
	return audit.NewFromConfig(rt.cfg.Audit, rt.Logger())
}

// writeObject prints obj as json or yaml; table output falls back to table.
func (rt *runtimeState) writeObject(obj any, table func(io.Writer)) error {
	format := rt.OutputFormat()
	if format == output.FormatTable {
		table(rt.Writer())
		return nil
	}
	return output.WriteObject(rt.Writer(), format, obj)
}

func asAuditor(m *audit.Manager) policy.Auditor {
	if m == nil {
		return nil
	}
	return m
}
