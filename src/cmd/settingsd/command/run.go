package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cormoran/zmk-module-settings-rpc/src/config"
	"github.com/cormoran/zmk-module-settings-rpc/src/splitsync"
	vers "github.com/cormoran/zmk-module-settings-rpc/src/version"
)

var (
	conf    *config.Config
	datadir *string
	version *bool
)

func init() {
	conf = config.NewDefaultConfig()

	cobra.OnInitialize(initConfig)

	// Base datadir
	datadir = rootCmd.PersistentFlags().StringP("datadir", "d", conf.DataDir, "Base configuration directory")

	// Role
	rootCmd.PersistentFlags().String("role", conf.Role, "Node role (central or peripheral)")
	rootCmd.PersistentFlags().Uint8("index", conf.PeripheralIndex, "Peripheral index (1-8), when role is peripheral")
	rootCmd.PersistentFlags().StringP("moniker", "m", conf.Moniker, "Friendly name of this node")

	// Listen addresses
	rootCmd.PersistentFlags().StringP("listen", "l", conf.BindAddr, "Listen IP:Port for inter-node messages")
	rootCmd.PersistentFlags().StringP("service-listen", "s", conf.ServiceAddr, "Listen IP:Port for the HTTP API service")
	rootCmd.PersistentFlags().Bool("no-service", conf.NoService, "Disable the HTTP API service")

	// Protocol
	rootCmd.PersistentFlags().Duration("collect-window", conf.CollectWindow, "Settings collection window")
	rootCmd.PersistentFlags().DurationP("timeout", "t", conf.TCPTimeout, "TCP Timeout")
	rootCmd.PersistentFlags().Int("max-pool", conf.MaxPool, "Connection pool size max")
	rootCmd.PersistentFlags().Int("event-buffer", conf.EventBuffer, "Local event queue size")

	// Boot-time settings
	rootCmd.PersistentFlags().Uint32("idle-ms", conf.IdleMs, "Boot-time idle timeout in ms (0 disables)")
	rootCmd.PersistentFlags().Uint32("sleep-ms", conf.SleepMs, "Boot-time sleep timeout in ms (0 disables)")

	// Various
	rootCmd.PersistentFlags().String("log", conf.LogLevel, "Log level (debug, info, warn, error, fatal, panic)")

	// Version
	version = rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version and exit")
}

func initConfig() {
	viper.AddConfigPath(*datadir)
	viper.SetConfigName("settingsd")

	viper.BindPFlags(rootCmd.PersistentFlags())

	if err := viper.ReadInConfig(); err != nil {
		conf.Logger().Warn(err, ". Taking cli or default.")
	}

	if err := viper.Unmarshal(conf); err != nil {
		conf.Logger().Warn(err, ". Taking cli or default.")
	}
}

// addLogFileHook tees info and debug output into log files in the datadir.
func addLogFileHook(logger *logrus.Logger) {
	pathMap := lfshook.PathMap{}

	infoPath := filepath.Join(conf.DataDir, "settingsd_info.log")
	if _, err := os.OpenFile(infoPath, os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		logger.Info("Failed to open settingsd_info.log file, using default stderr")
	} else {
		pathMap[logrus.InfoLevel] = infoPath
	}

	debugPath := filepath.Join(conf.DataDir, "settingsd_debug.log")
	if _, err := os.OpenFile(debugPath, os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		logger.Info("Failed to open settingsd_debug.log file, using default stderr")
	} else {
		pathMap[logrus.DebugLevel] = debugPath
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))
}

var rootCmd = &cobra.Command{
	Use:   "settingsd",
	Short: "Split settings synchronization node",
	Long:  "Split settings synchronization node",
	Run: func(cmd *cobra.Command, args []string) {
		if *version {
			fmt.Println(vers.Version)

			return
		}

		logger := conf.Logger()
		logger.Logger.Level = config.LogLevel(conf.LogLevel)
		addLogFileHook(logger.Logger)

		logger.WithFields(logrus.Fields{
			"datadir":        conf.DataDir,
			"role":           conf.Role,
			"index":          conf.PeripheralIndex,
			"moniker":        conf.Moniker,
			"listen":         conf.BindAddr,
			"service-listen": conf.ServiceAddr,
			"no-service":     conf.NoService,
			"collect-window": conf.CollectWindow,
			"timeout":        conf.TCPTimeout,
			"max-pool":       conf.MaxPool,
			"idle-ms":        conf.IdleMs,
			"sleep-ms":       conf.SleepMs,
			"log":            conf.LogLevel,
		}).Debug("RUN")

		engine := splitsync.NewSplitSync(conf)

		if err := engine.Init(); err != nil {
			logger.Error("Cannot initialize engine:", err)

			return
		}

		engine.Run()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)

		os.Exit(1)
	}
}
