package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"quiz-room-service/internal/config"
	"quiz-room-service/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type rootOptions struct {
	port       string
	configPath string
	logLevel   string
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quiz-room",
		Short:         "Multiplayer quiz rooms with per-player option shuffles and live leaderboards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVar(&opts.port, "port", "", "port to listen on, overrides server.port (env: QUIZ_PORT)")
	fs.StringVar(&opts.configPath, "config", "config/config.yaml", "path to YAML config (env: QUIZ_CONFIG)")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error, overrides log.level (env: QUIZ_LOG_LEVEL)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			_ = v.BindPFlag(f.Name, f)
			_ = v.BindEnv(f.Name)
			if !f.Changed && v.IsSet(f.Name) {
				if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil && bindErr == nil {
					bindErr = err
				}
			}
		})
		return bindErr
	}

	cmd.AddCommand(NewStartCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewBankCmd(opts))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// load reads the config file and applies flag overrides.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	if o.port != "" {
		cfg.Server.Port = o.port
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

func setupLogging(cfg config.Config) {
	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level))
}
