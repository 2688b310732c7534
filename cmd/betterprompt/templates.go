package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dhanuzh/betterprompt/internal/template"
)

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates", "tpl"},
		Short:   "Manage rewriting templates",
	}
	cmd.AddCommand(
		templateListCmd(),
		templateShowCmd(),
		templateUseCmd(),
		templateSetCustomCmd(),
		templateValidateCmd(),
		templateResetCmd(),
		templateExportCmd(),
		templateImportCmd(),
	)
	return cmd
}

func templateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			active := a.templates.Active()
			labels := template.Labels()
			fmt.Fprintf(a.out, "%-10s %-22s %s\n", "Name", "Description", "Active")
			for _, name := range template.Names() {
				mark := ""
				if name == active {
					mark = "*"
				}
				fmt.Fprintf(a.out, "%-10s %-22s %s\n", name, labels[name], mark)
			}
			return nil
		},
	}
}

func templateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Print a template (the one sent with the next request by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				fmt.Fprintln(a.out, a.templates.ActiveContent())
				return nil
			}
			if args[0] == template.Custom {
				fmt.Fprintln(a.out, a.templates.Custom())
				return nil
			}
			s, ok := template.Builtin(args[0])
			if !ok {
				return fmt.Errorf("unknown template %q, valid: %s", args[0], strings.Join(template.Names(), ", "))
			}
			fmt.Fprintln(a.out, s)
			return nil
		},
	}
}

func templateUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Set the active template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.templates.SetActive(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("unknown template %q, valid: %s", args[0], strings.Join(template.Names(), ", "))
			}
			fmt.Fprintf(a.out, "Active template: %s\n", args[0])
			return nil
		},
	}
}

func templateSetCustomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-custom [text...]",
		Short: "Replace the custom template (reads stdin without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			text, err := readTemplateText(cmd, args)
			if err != nil {
				return err
			}
			res := template.Validate(text)
			for _, w := range res.Warnings {
				fmt.Fprintln(a.errOut, a.styles.Warning.Render("! "+w))
			}
			if !res.Valid {
				return errors.New(strings.Join(res.Errors, "; "))
			}
			if err := a.templates.SetCustom(text); err != nil {
				return err
			}
			if use, _ := cmd.Flags().GetBool("use"); use {
				if _, err := a.templates.SetActive(template.Custom); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.out, a.styles.Success.Render("✓ custom template saved"))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "Read the template from a file")
	cmd.Flags().Bool("use", false, "Also make the custom template active")
	return cmd
}

func templateValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [text...]",
		Short: "Check a template without saving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readTemplateText(cmd, args)
			if err != nil {
				return err
			}
			res := template.Validate(text)
			out := cmd.OutOrStdout()
			for _, e := range res.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if !res.Valid {
				return errors.New("template is invalid")
			}
			fmt.Fprintln(out, "template is valid")
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "Read the template from a file")
	return cmd
}

func readTemplateText(cmd *cobra.Command, args []string) (string, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return readPrompt(cmd, args)
}

func templateResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Select the default template and clear the custom one",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.templates.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Templates reset")
			return nil
		},
	}
}

func templateExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the template settings as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := json.MarshalIndent(a.templates.ExportConfig(), "", "  ")
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			return writeOutput(a, output, append(data, '\n'))
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func templateImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import template settings exported with 'template export'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var c template.Config
			if err := json.Unmarshal(data, &c); err != nil {
				return fmt.Errorf("invalid template export: %w", err)
			}
			if err := a.templates.ImportConfig(c); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported template settings (active: %s)\n", a.templates.Active())
			return nil
		},
	}
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(a *app, path string, data []byte) error {
	if path == "" {
		_, err := a.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}
	fmt.Fprintf(a.errOut, "Wrote %s\n", path)
	return nil
}
