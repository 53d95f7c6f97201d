// Package commands implements the junction command-line interface.
package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BuildInfo identifies the binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand creates the junction command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "junction",
		Short: "Junction travel API CLI",
		Long: `A command-line interface for the Junction travel content API.

Search places, flights and trains, and manage bookings and cancellations.
The API key is read from --api-key, JUNCTION_API_KEY, a .env file or
$HOME/.junction/config.yml, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.junction/config.yml)")
	flags.String("api-key", "", "Junction API key")
	flags.String("base-url", "", "API base URL")
	flags.StringP("output", "o", OutputFormatTable, "output format (table, json, yaml)")
	flags.BoolP("verbose", "v", false, "log requests to stderr")
	flags.Duration("timeout", defaultTimeout, "overall command timeout")
	flags.String("redis-url", "", "Redis URL for the shared response cache")
	flags.Float64("rate-limit", 0, "client-side request rate (requests per second)")

	_ = viper.BindPFlag(keyAPIKey, flags.Lookup("api-key"))
	_ = viper.BindPFlag(keyBaseURL, flags.Lookup("base-url"))
	_ = viper.BindPFlag(keyOutput, flags.Lookup("output"))
	_ = viper.BindPFlag(keyVerbose, flags.Lookup("verbose"))
	_ = viper.BindPFlag(keyTimeout, flags.Lookup("timeout"))
	_ = viper.BindPFlag(keyRedisURL, flags.Lookup("redis-url"))
	_ = viper.BindPFlag(keyRateLimit, flags.Lookup("rate-limit"))

	root.AddCommand(NewVersionCommand(build))
	root.AddCommand(NewAuthCommand())
	root.AddCommand(NewPlacesCommand())
	root.AddCommand(NewFlightsCommand())
	root.AddCommand(NewTrainsCommand())
	root.AddCommand(NewBookingsCommand())
	root.AddCommand(NewCancellationsCommand())

	return root
}

func initConfig(cfgFile string) error {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	viper.SetEnvPrefix("JUNCTION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	dir, err := configDir()
	if err != nil {
		return nil
	}
	viper.AddConfigPath(dir)
	viper.SetConfigType("yml")
	viper.SetConfigName("config")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".junction"), nil
}

// configFile returns the file to persist settings to.
func configFile() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(dir, "config.yml"), nil
}
