package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
)

var (
	configShow   bool
	configGlobal bool
	configSet    string
	configRemove string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or modify the provider profile store",
	Long: `Inspect or modify the configuration file at $XDG_CONFIG_HOME/mgit/config.yaml
(or the path named by MGIT_CONFIG).

Examples:
  mgit config --show
  mgit config --global
  mgit config --set default_concurrency=8
  mgit config --remove work-github`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configShow, "show", false, "list configured profiles")
	configCmd.Flags().BoolVar(&configGlobal, "global", false, "print global settings")
	configCmd.Flags().StringVar(&configSet, "set", "", "set a global key, e.g. default_concurrency=8")
	configCmd.Flags().StringVar(&configRemove, "remove", "", "remove the named profile")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfigForWrite()
	if err != nil {
		return err
	}

	switch {
	case configSet != "":
		key, value, ok := strings.Cut(configSet, "=")
		if !ok {
			return errs.New(errs.KindConfigError, "config --set", "", fmt.Sprintf("expected key=value, got %q", configSet), nil)
		}
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		return config.Save(path, cfg)

	case configRemove != "":
		cfg.RemoveProfile(configRemove)
		return config.Save(path, cfg)

	case configGlobal:
		fmt.Fprintf(cmd.OutOrStdout(), "default_concurrency: %d\n", cfg.Global.DefaultConcurrency)
		fmt.Fprintf(cmd.OutOrStdout(), "default_update_mode: %s\n", cfg.Global.DefaultUpdateMode)
		fmt.Fprintf(cmd.OutOrStdout(), "default_provider: %s\n", cfg.Global.DefaultProvider)
		return nil

	default: // --show, or no flag at all
		names := make([]string, 0, len(cfg.Providers))
		for name := range cfg.Providers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := cfg.Providers[name]
			marker := ""
			if p.Default {
				marker = " (default)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tkind=%s\turl=%s%s\n", p.Name, p.Kind, p.BaseURL, marker)
		}
		return nil
	}
}

// loadConfigForWrite loads the config file that writes should target: the
// path named by MGIT_CONFIG when set, otherwise the XDG path, creating the
// XDG directory (but not the file) if it doesn't exist yet.
func loadConfigForWrite() (*config.Config, string, error) {
	if envPath := os.Getenv("MGIT_CONFIG"); envPath != "" {
		if _, statErr := os.Stat(envPath); statErr != nil {
			return &config.Config{Global: config.DefaultGlobal(), Providers: map[string]config.ProviderProfile{}}, envPath, nil
		}
		cfg, err := config.Load(envPath)
		if err != nil {
			return nil, "", err
		}
		return cfg, envPath, nil
	}

	paths, err := config.NewPaths()
	if err != nil {
		return nil, "", errs.New(errs.KindConfigError, "loadConfigForWrite", "", "", err)
	}
	if err := paths.EnsureDir(); err != nil {
		return nil, "", errs.New(errs.KindConfigError, "loadConfigForWrite", "", "", err)
	}

	if !paths.Exists() {
		return &config.Config{Global: config.DefaultGlobal(), Providers: map[string]config.ProviderProfile{}}, paths.ConfigFile, nil
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, "", err
	}
	return cfg, paths.ConfigFile, nil
}
