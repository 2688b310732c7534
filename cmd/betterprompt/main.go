package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err, stderrStyles()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "betterprompt",
		Short: "Better Prompt - rewrite prompts with the LLM of your choice",
		Long: `Better Prompt sends your prompt to Gemini, OpenAI, Anthropic or OpenRouter
together with a rewriting template and prints the optimized prompt.
Results are kept in a local history that can be searched, rated and exported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Flags
	rootCmd.PersistentFlags().StringP("provider", "p", "", "Provider to use (gemini, openai, anthropic, openrouter)")
	rootCmd.PersistentFlags().StringP("model", "m", "", "Model to use")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/betterprompt/betterprompt.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print request details to stderr")

	// Sub-commands
	rootCmd.AddCommand(
		optimizeCmd(),
		refineCmd(),
		compareCmd(),
		authCmd(),
		providersCmd(),
		modelsCmd(),
		templateCmd(),
		historyCmd(),
		configCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "betterprompt %s (%s)\n", version, commit)
		},
	}
}
