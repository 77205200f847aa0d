package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/miamanabat/Message-Queue/pkg/broker"
	"github.com/miamanabat/Message-Queue/pkg/mq"
)

const (
	keyName     = "name"
	keyHost     = "host"
	keyPort     = "port"
	keyLogLevel = "log-level"
)

var cfgFile string //nolint:gochecknoglobals // cobra

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "mqctl",
	Short: "Publish/subscribe message queue client and broker",
	Long: `mqctl talks to a message queue broker over its text protocol.

Run "mqctl serve" to start a broker, "mqctl chat" for an interactive
line-mode session, or "mqctl publish" to send a single message.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// fileConfig is the layout of the --config YAML file.
type fileConfig struct {
	Client mq.Config     `yaml:"client"`
	Broker broker.Config `yaml:"broker"`
}

// Execute runs the root command. It only needs to happen once.
func Execute(ctx context.Context, args []string) {
	if args != nil {
		rootCmd.SetArgs(args)
	}
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file with client: and broker: sections")
	flags.String(keyName, "", "client name (default $MQ_NAME or $USER)")
	flags.String(keyHost, "", "broker host (default \"localhost\")")
	flags.String(keyPort, "", "broker port (default \"9540\")")
	flags.String(keyLogLevel, "info", "log level: debug, info, warn, error")

	for _, key := range []string{keyName, keyHost, keyPort, keyLogLevel} {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(key)))
	}
}

// initConfig binds MQ_* environment variables.
func initConfig() {
	viper.SetEnvPrefix("MQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString(keyLogLevel))); err != nil {
		return errors.Wrap(err, "log level")
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

// loadFileConfig reads --config when given. Sections left out of the file
// come back as zero values.
func loadFileConfig() (fileConfig, error) {
	var fc fileConfig
	if cfgFile == "" {
		return fc, nil
	}

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		return fc, errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, errors.Wrap(err, "parse config file")
	}
	return fc, nil
}

// clientConfig layers the environment, the config file, then flags.
func clientConfig() (mq.Config, error) {
	cfg := mq.ConfigFromEnv()

	fc, err := loadFileConfig()
	if err != nil {
		return cfg, err
	}
	if cfgFile != "" {
		name := cfg.Name
		cfg = fc.Client.WithDefaults()
		if cfg.Name == "" {
			cfg.Name = name
		}
	}

	if viper.IsSet(keyName) {
		cfg.Name = viper.GetString(keyName)
	}
	if viper.IsSet(keyHost) {
		cfg.Server.Host = viper.GetString(keyHost)
	}
	if viper.IsSet(keyPort) {
		cfg.Server.Port = viper.GetString(keyPort)
	}

	return cfg, nil
}

// newClient builds and starts a client from the layered config.
func newClient() (*mq.Client, error) {
	cfg, err := clientConfig()
	if err != nil {
		return nil, err
	}

	client, err := mq.New(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}
	if err := client.Start(); err != nil {
		return nil, errors.Wrap(err, "start client")
	}
	return client, nil
}

// shutdownClient stops the workers, then releases the queues.
func shutdownClient(ctx context.Context, client *mq.Client) error {
	if err := client.Stop(ctx); err != nil {
		return errors.Wrap(err, "stop client")
	}
	return errors.Wrap(client.Close(), "close client")
}
