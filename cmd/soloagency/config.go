package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/soloagency/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify soloagency configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/soloagency/config.yaml
Project-specific overrides can be placed in .soloagency.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch len(args) {
		case 0:
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			displayAllConfig(cfg)
			return nil
		case 1:
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			return setConfigKey(args[0], args[1])
		}
	},
}

// displayAllConfig prints every key with secrets masked.
func displayAllConfig(cfg *config.Config) {
	for _, key := range cfg.Keys() {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		if value == "" {
			value = color.New(color.Faint).Sprint("(not set)")
		}
		fmt.Printf("%s: %s\n", color.New(color.Bold).Sprint(key), value)
	}
	for _, provider := range []string{"anthropic", "gemini"} {
		fmt.Printf("%s\n", color.New(color.Faint).Sprintf("# %s key source: %s", provider, config.GetAPIKeySource(cfg, provider)))
	}
}

// setConfigKey updates one key in the file being edited: --config when
// given, otherwise the user config.
func setConfigKey(key, value string) error {
	path := configPath
	if path == "" {
		path = config.GetUserConfigPath()
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.LoadFromPath(path)
		if err != nil {
			return err
		}
	}

	// Keys that come from the environment must not be written to disk.
	for _, provider := range []string{"anthropic", "gemini"} {
		secret := provider + ".api_key"
		if strings.EqualFold(key, secret) {
			continue
		}
		if config.GetAPIKeySource(cfg, provider) == config.KeySourceEnv {
			if err := cfg.Set(secret, ""); err != nil {
				return err
			}
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	shown, _ := cfg.Get(key)
	fmt.Printf("%s Set %s = %s\n", color.GreenString("✓"), strings.ToLower(key), shown)
	return nil
}
