// Package cli implements the contraverify command line client.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	apiKey  string
	verbose bool

	cliVersion = "dev"
)

// Execute runs the CLI
func Execute(version string) error {
	cliVersion = version

	rootCmd := &cobra.Command{
		Use:     "contraverify",
		Short:   "Smart contract source verification CLI",
		Long:    `Contraverify submits contract sources to the tangerine verification service and reports the result.`,
		Version: version,
		// Failures are already written to the results output
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: contraverify.toml or cv.toml)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "verification service API key (default from key store)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests to stderr")

	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createCheckCmd())
	rootCmd.AddCommand(createAPIKeyCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd.Execute()
}

// newLogger logs to stderr so stdout only carries results
func newLogger() *slog.Logger {
	return newLoggerTo(os.Stderr)
}

func newLoggerTo(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// resolve picks the first non-empty value of flag, environment variable envKey,
// project config value and fallback
func resolve(flag, envKey, configValue, fallback string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(envKey); env != "" {
		return env
	}
	if configValue != "" {
		return configValue
	}
	return fallback
}
