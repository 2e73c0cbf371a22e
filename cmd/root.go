// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vulntrack/internal/config"
	"github.com/xkilldash9x/vulntrack/internal/observability"
	"github.com/xkilldash9x/vulntrack/internal/service"
)

type contextKey string

const configKey contextKey = "config"

// defaultConfigName is looked up in the working directory when --config is
// not given.
const defaultConfigName = "vulntrack"

// Execute builds the root command with the production component factory and
// runs it.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand(service.NewComponentFactory())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Debug("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}

// NewRootCommand creates the command tree. Every command that touches the
// database obtains its services from factory.
func NewRootCommand(factory service.ComponentFactory) *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:          "vulntrack",
		Short:        "vulntrack imports scanner reports and tracks their remediation.",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			if err := v.BindPFlag("logger.level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
				return err
			}
			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "vulntrack"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting vulntrack", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, config.Interface(cfg)))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./vulntrack.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override logger.level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newMigrateCmd(factory),
		newImportCmd(factory),
		newImportDirCmd(factory),
		newExportCmd(factory),
		newReportsCmd(factory),
		newStatusCmd(factory),
		newSearchCmd(factory),
		newTreeCmd(factory),
		newDashboardCmd(factory),
		newLogsCmd(factory),
		newVersionCmd(),
	)
	return rootCmd
}

// initializeConfig reads the config file, if any, into v. A missing default
// file is not an error. Environment overrides are bound by
// config.NewConfigFromViper.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// getConfigFromContext returns the configuration stored by the root command.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not found in context")
	}
	return cfg, nil
}

// withTracker opens the components for one command invocation, hands the
// tracker to fn and releases everything afterwards.
func withTracker(cmd *cobra.Command, factory service.ComponentFactory, fn func(ctx context.Context, svc service.Interface) error) error {
	return withComponents(cmd, factory, func(ctx context.Context, c *service.Components) error {
		return fn(ctx, c.Tracker)
	})
}

func withComponents(cmd *cobra.Command, factory service.ComponentFactory, fn func(ctx context.Context, c *service.Components) error) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}

	logger := observability.GetLogger()
	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	return fn(ctx, components)
}
