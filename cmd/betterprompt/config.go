package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dhanuzh/betterprompt/internal/config"
	"github.com/Dhanuzh/betterprompt/internal/credential"
	"github.com/Dhanuzh/betterprompt/internal/optimizer"
	"github.com/Dhanuzh/betterprompt/internal/storage"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(
		configShowCmd(),
		configPathCmd(),
		configInitCmd(),
		configSetTimeoutCmd(),
		configSetRetriesCmd(),
		configMultiRoundCmd(),
	)
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			mr, err := a.multiRound()
			if err != nil {
				return err
			}
			s := a.dispatcher.Settings()
			cfg := *a.cfg
			cfg.Providers = make(map[string]config.ProviderOverride, len(a.cfg.Providers))
			for name, o := range a.cfg.Providers {
				if o.APIKey != "" {
					o.APIKey = credential.Mask(o.APIKey)
				}
				cfg.Providers[name] = o
			}
			view := struct {
				*config.Config
				ActiveProvider string               `json:"active_provider"`
				ActiveTemplate string               `json:"active_template"`
				Timeout        int                  `json:"timeout"`
				MaxRetries     int                  `json:"max_retries"`
				MultiRound     optimizer.MultiRound `json:"multi_round"`
			}{
				Config:         &cfg,
				ActiveProvider: string(a.creds.Provider()),
				ActiveTemplate: a.templates.Active(),
				Timeout:        int(s.Timeout / time.Second),
				MaxRetries:     s.MaxRetries,
				MultiRound:     mr,
			}
			data, err := json.MarshalIndent(view, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(data))
			return nil
		},
	}
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config and storage locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(flagPath)
			if err != nil {
				return err
			}
			cfgPath := flagPath
			if cfgPath == "" {
				cfgPath = os.Getenv(config.EnvConfig)
			}
			if cfgPath == "" {
				cfgPath = config.DefaultConfigPath()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:  %s\n", cfgPath)
			fmt.Fprintf(out, "storage: %s (%s)\n", cfg.Storage.Path, cfg.Storage.Driver)
			fmt.Fprintf(out, "\n%s\n", config.GetConfigPrecedence())
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			force, _ := cmd.Flags().GetBool("force")
			loadPath := cfgPath
			if cfgPath == "" {
				cfgPath = config.DefaultConfigPath()
			}
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", cfgPath)
			} else if err != nil {
				// nothing to read yet: start from defaults and the environment
				loadPath = ""
			}
			cfg, err := config.Load(loadPath)
			if err != nil {
				return err
			}
			if err := cfg.SaveConfig(cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func configSetTimeoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-timeout <seconds>",
		Short: "Set the per-attempt request timeout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("timeout must be a whole number of seconds, got %q", args[0])
			}
			return updateSettings(cmd, optimizer.SettingsUpdate{TimeoutSeconds: &n})
		},
	}
}

func configSetRetriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-retries <attempts>",
		Short: "Set the number of attempts per request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("attempts must be a number, got %q", args[0])
			}
			return updateSettings(cmd, optimizer.SettingsUpdate{MaxRetries: &n})
		},
	}
}

func updateSettings(cmd *cobra.Command, u optimizer.SettingsUpdate) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.dispatcher.SetConfig(u); err != nil {
		return err
	}
	if err := a.saveErrorHandling(); err != nil {
		return err
	}
	s := a.dispatcher.Settings()
	fmt.Fprintf(a.out, "timeout %s, %d attempt(s)\n", s.Timeout, s.MaxRetries)
	return nil
}

func configMultiRoundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multi-round",
		Short: "Change the stored multi-round refinement settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			mr, err := a.multiRound()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("enable") {
				mr.Enabled, _ = flags.GetBool("enable")
			}
			if flags.Changed("rounds") {
				mr.Rounds, _ = flags.GetInt("rounds")
			}
			if flags.Changed("depth") {
				mr.Depth, _ = flags.GetString("depth")
			}
			if mr.Rounds < 1 {
				return fmt.Errorf("rounds must be at least 1, got %d", mr.Rounds)
			}
			if err := a.store.Set(storage.KeyMultiRoundSettings, mr); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "multi-round: enabled=%t rounds=%d depth=%s\n", mr.Enabled, mr.Rounds, mr.Depth)
			return nil
		},
	}
	cmd.Flags().Bool("enable", false, "Turn multi-round refinement on or off")
	cmd.Flags().Int("rounds", 0, "Number of rounds")
	cmd.Flags().String("depth", "", "Refinement depth")
	return cmd
}
