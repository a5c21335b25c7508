package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"arakoon-deploy-backend/internal/config"
	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/service"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "arakoonctl",
	Short:         "Create, extend, shrink, restart and delete Arakoon clusters",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "specifies a config file to load")

	configFlags := config.Flags()
	rootCmd.PersistentFlags().AddFlagSet(configFlags)
	if err := config.Bind(viper.GetViper(), configFlags); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		createCmd(),
		extendCmd(),
		shrinkCmd(),
		deleteCmd(),
		restartAddCmd(),
		restartRemoveCmd(),
		waitCmd(),
		showCmd(),
	)
}

type env struct {
	clusters *service.ClusterService
}

// setup loads the configuration and wires a ClusterService. Metrics are not
// collected for one-shot commands.
func setup() (*env, error) {
	_ = godotenv.Load()

	if err := config.ReadFile(viper.GetViper(), cfgFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	remotes, err := service.NewRemoteFactory(cfg.SSH, log)
	if err != nil {
		return nil, err
	}
	return &env{
		clusters: service.NewClusterService(cfg.Arakoon, remotes, nil, log),
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
