package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "LEDGERD"
	defaultHomeDir    = ".ledgerd"
	defaultConfigFile = "config.yaml"

	keyHome   = "home"
	keyConfig = "config"
)

type rootConfiguration struct {
	HomeDir string
	CfgFile string
}

func newRootCmd() *cobra.Command {
	config := &rootConfiguration{}
	rootCmd := &cobra.Command{
		Use:           "ledgerd",
		Short:         "A proof-of-work ledger node",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(cmd, config); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&config.HomeDir, keyHome, "", fmt.Sprintf("node home directory (default $HOME/%s)", defaultHomeDir))
	rootCmd.PersistentFlags().StringVar(&config.CfgFile, keyConfig, "", fmt.Sprintf("config file (default $%s_HOME/%s)", envPrefix, defaultConfigFile))

	rootCmd.AddCommand(newRunCmd())
	return rootCmd
}

func (c *rootConfiguration) configFile() string {
	if c.HomeDir == "" {
		if home := os.Getenv(envPrefix + "_HOME"); home != "" {
			c.HomeDir = home
		} else if dir, err := os.UserHomeDir(); err == nil {
			c.HomeDir = filepath.Join(dir, defaultHomeDir)
		}
	}
	if c.CfgFile == "" {
		c.CfgFile = os.Getenv(envPrefix + "_CONFIG")
	}
	if c.CfgFile == "" && c.HomeDir != "" {
		return filepath.Join(c.HomeDir, defaultConfigFile)
	}
	return c.CfgFile
}

// initializeConfig reads the config file and LEDGERD_* environment variables
// into every flag the user did not set explicitly.
func initializeConfig(cmd *cobra.Command, config *rootConfiguration) error {
	v := viper.New()

	cfgFile := config.configFile()
	explicit := config.CfgFile != ""
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading %s: %w", cfgFile, err)
			}
		} else if explicit {
			return fmt.Errorf("config file %s: %w", cfgFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	return bindFlags(cmd, v)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var errs []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == keyHome || f.Name == keyConfig {
			return
		}

		// LEDGERD_SYNC_INTERVAL for --sync-interval
		if strings.Contains(f.Name, "-") {
			suffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, envPrefix+"_"+suffix); err != nil {
				errs = append(errs, fmt.Errorf("binding env to flag %q: %w", f.Name, err))
				return
			}
		}

		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := cmd.Flags().Set(f.Name, flagValue(v.Get(f.Name))); err != nil {
			errs = append(errs, fmt.Errorf("setting flag %q value: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// flagValue renders a config value as flag input. Lists from YAML become
// comma separated.
func flagValue(val any) string {
	if list, ok := val.([]any); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%v", val)
}
