package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Manu343726/pipetrace/cmd/tools"
	"github.com/Manu343726/pipetrace/cmd/trace"
	"github.com/Manu343726/pipetrace/pkg/logging"
	"github.com/fatih/color"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var colorError = color.New(color.FgRed, color.Bold)

// Stops the profiler and closes the log file once the command finishes
var cleanups []func()

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "pipetrace",
	Short: "Inspect the traces of a 5-stage RISC-V pipeline simulator",
	Long: `Pipetrace parses the cycle by cycle text output of a 5-stage RISC-V pipeline
simulator into a structured trace: stage states, pipeline registers, branch
prediction, register file updates and simulation statistics.

The trace can be converted to JSON or YAML, or inspected from the terminal.`,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := RootCmd.Execute()
	teardown(RootCmd, nil)

	if err != nil {
		code := trace.ExitFailure
		var exitErr *trace.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
		}

		colorError.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(code)
	}
}

func init() {
	RootCmd.AddCommand(tools.ToolsCmd, trace.TraceCmd)
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.pipetrace.yaml)")
	RootCmd.PersistentFlags().String("log-level", "warn", "Console log level: debug, info, warn or error")
	RootCmd.PersistentFlags().String("log-file", "", "Write every log record to this file as JSON lines")
	RootCmd.PersistentFlags().String("profile", "", "Profile the command: cpu or mem")

	for _, name := range []string{"log-level", "log-file", "profile"} {
		cobra.CheckErr(viper.BindPFlag(name, RootCmd.PersistentFlags().Lookup(name)))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pipetrace" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pipetrace")
	}

	viper.SetEnvPrefix("pipetrace")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setup(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := logging.New(logging.Config{
		Level: viper.GetString("log-level"),
		File:  viper.GetString("log-file"),
	})
	if err != nil {
		return err
	}

	slog.SetDefault(logger)
	cleanups = append(cleanups, func() { closeLog() })

	switch mode := viper.GetString("profile"); mode {
	case "":
	case "cpu":
		cleanups = append(cleanups, profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop)
	case "mem":
		cleanups = append(cleanups, profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop)
	default:
		return fmt.Errorf("unknown profile mode %q, expected cpu or mem", mode)
	}

	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil

	return nil
}
