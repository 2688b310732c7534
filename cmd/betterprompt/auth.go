package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dhanuzh/betterprompt/internal/config"
	"github.com/Dhanuzh/betterprompt/internal/credential"
	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/storage"
	"github.com/Dhanuzh/betterprompt/internal/validate"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API keys",
	}
	cmd.AddCommand(authSetCmd(), authListCmd(), authRemoveCmd(), authDetectCmd())
	return cmd
}

func authSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store an API key for a provider",
		Long: `Store an API key for a provider. Without a key argument the key is read
without echo from the terminal, or as one line from stdin.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := provider.ParseID(args[0])
			if err != nil {
				return err
			}

			var key string
			if len(args) == 2 {
				key = args[1]
			} else if key, err = readKey(cmd, id); err != nil {
				return err
			}

			if err := a.creds.SetAPIKey(id, key); err != nil {
				return err
			}
			a.storedKeys[string(id)] = key
			a.keySource[id] = "stored"
			if err := a.saveCredentials(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, a.styles.Success.Render(fmt.Sprintf("✓ API key for %s saved (%s)", id, credential.Mask(key))))
			return nil
		},
	}
}

func readKey(cmd *cobra.Command, id provider.ID) (string, error) {
	if cmd.InOrStdin() == os.Stdin && config.IsTerminal() {
		return config.ReadHiddenInput(fmt.Sprintf("Enter %s API key: ", id))
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no API key given")
	}
	return strings.TrimSpace(line), nil
}

func authListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "status"},
		Short:   "Show which providers have a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			active := a.creds.Provider()
			fmt.Fprintf(a.out, "%-12s %-8s %-16s %s\n", "Provider", "Source", "Key", "Active")
			for _, id := range provider.IDs() {
				source, masked := "-", "-"
				if key, ok := a.creds.APIKey(id); ok {
					source = a.keySource[id]
					masked = credential.Mask(key)
				}
				mark := ""
				if id == active {
					mark = "*"
				}
				fmt.Fprintf(a.out, "%-12s %-8s %-16s %s\n", id, source, masked, mark)
			}
			return nil
		},
	}
}

func authRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <provider>",
		Aliases: []string{"rm", "logout"},
		Short:   "Delete a stored API key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := provider.ParseID(args[0])
			if err != nil {
				return err
			}
			if a.keySource[id] == "env" {
				fmt.Fprintln(a.errOut, a.styles.Warning.Render(
					fmt.Sprintf("! the %s key comes from %s and stays set", id, strings.Join(config.EnvVars[id], "/"))))
			}
			a.creds.RemoveAPIKey(id)
			delete(a.storedKeys, string(id))
			delete(a.keySource, id)
			if err := a.saveCredentials(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed API key for %s\n", id)
			return nil
		},
	}
}

func authDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <key>",
		Short: "Guess which provider issued a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := validate.DetectProvider(args[0])
			if !ok {
				return &validate.ValidationError{Reasons: []string{"key does not match any known provider format"}}
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func providersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			active := a.creds.Provider()
			fmt.Fprintf(a.out, "%-12s %-22s %-32s %-4s %s\n", "ID", "Name", "Default model", "Key", "Endpoint")
			for _, d := range a.registry.List() {
				key := "no"
				if _, ok := a.creds.APIKey(d.ID); ok {
					key = "yes"
				}
				name := d.Name
				if d.ID == active {
					name += " (active)"
				}
				fmt.Fprintf(a.out, "%-12s %-22s %-32s %-4s %s\n", d.ID, name, d.DefaultModel(), key, d.Endpoint)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "use <provider>",
		Short: "Set the active provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := provider.ParseID(args[0])
			if err != nil {
				return err
			}
			a.creds.SetProvider(id)
			if err := a.store.Set(storage.KeyCurrentProvider, string(id)); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Active provider: %s\n", id)
			if _, ok := a.creds.APIKey(id); !ok {
				d, _ := a.registry.Get(id)
				fmt.Fprintln(a.errOut, a.styles.Warning.Render(
					fmt.Sprintf("! no API key for %s yet: run 'betterprompt auth set %s' (get one at %s)", id, id, d.SignupURL)))
			}
			return nil
		},
	})
	return cmd
}

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List models",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			descs := a.registry.List()
			if len(args) == 1 {
				id, err := provider.ParseID(args[0])
				if err != nil {
					return err
				}
				d, _ := a.registry.Get(id)
				descs = []provider.Descriptor{d}
			}

			fmt.Fprintf(a.out, "%-12s %-36s %-32s %s\n", "Provider", "Model", "Name", "Custom")
			for _, d := range descs {
				for _, m := range d.Models {
					custom := ""
					if !a.registry.IsDefaultModel(d.ID, m.ID) {
						custom = "yes"
					}
					fmt.Fprintf(a.out, "%-12s %-36s %-32s %s\n", d.ID, m.ID, m.Name, custom)
				}
			}
			return nil
		},
	}
	cmd.AddCommand(modelsAddCmd(), modelsRemoveCmd())
	return cmd
}

func modelsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <provider> <model-id> [name]",
		Short: "Add a custom model (openrouter only)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := provider.ParseID(args[0])
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 3 {
				name = args[2]
			}
			if err := a.registry.AddCustomModel(id, args[1], name); err != nil {
				return err
			}
			if err := a.saveCustomModels(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s to %s\n", args[1], id)
			return nil
		},
	}
}

func modelsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <provider> <model-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a custom model",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := provider.ParseID(args[0])
			if err != nil {
				return err
			}
			if a.registry.IsDefaultModel(id, args[1]) {
				return fmt.Errorf("%s is a built-in %s model and cannot be removed", args[1], id)
			}
			if err := a.registry.RemoveCustomModel(id, args[1]); err != nil {
				return err
			}
			if err := a.saveCustomModels(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s from %s\n", args[1], id)
			return nil
		},
	}
}
