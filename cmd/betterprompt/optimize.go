package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Dhanuzh/betterprompt/internal/config"
	"github.com/Dhanuzh/betterprompt/internal/history"
	"github.com/Dhanuzh/betterprompt/internal/optimizer"
	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/template"
)

func optimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "optimize [prompt...]",
		Aliases: []string{"opt", "o"},
		Short:   "Optimize a prompt",
		Long: `Optimize a prompt with the active provider and print the result.
The prompt is read from the arguments, or from stdin when no arguments
are given or the only argument is "-".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			text, err := readPrompt(cmd, args)
			if err != nil {
				return err
			}
			req, err := a.requestOptions(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			return a.runOptimize(ctx, text, req, nil)
		},
	}
	addRequestFlags(cmd)
	return cmd
}

func refineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refine [history-id]",
		Short: "Optimize a previous result again",
		Long:  "Send the optimized text of a history entry (the latest by default) through another optimization pass.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				entry history.Entry
				ok    bool
			)
			if len(args) == 1 {
				entry, ok = a.history.Get(args[0])
			} else {
				entry, ok = a.history.Latest()
			}
			if !ok {
				return errors.New("no history entry to refine")
			}
			req, err := a.requestOptions(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			return a.runOptimize(ctx, entry.Optimized, req, []string{"refined"})
		},
	}
	addRequestFlags(cmd)
	return cmd
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [prompt...]",
		Short: "Optimize a prompt with several providers at once",
		Long: `Send the same prompt to several providers concurrently and print each
result. Without --providers every provider with a configured key is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			text, err := readPrompt(cmd, args)
			if err != nil {
				return err
			}
			req, err := a.requestOptions(cmd)
			if err != nil {
				return err
			}
			// --model names a model of one provider only
			req.opts.Model = ""

			names, _ := cmd.Flags().GetStringSlice("providers")
			ids, err := a.compareTargets(names)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			return a.runCompare(ctx, text, req, ids)
		},
	}
	addRequestFlags(cmd)
	cmd.Flags().StringSlice("providers", nil, "Providers to compare (default: all with a key)")
	return cmd
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().Float64P("temperature", "t", 0, "Sampling temperature between 0 and 1")
	cmd.Flags().StringP("strength", "s", "", "Optimization strength (light, medium, strong)")
	cmd.Flags().String("template", "", "Template for this request (default, simple, extended, custom)")
	cmd.Flags().Int("rounds", 0, "Ask for iterative refinement over this many rounds")
	cmd.Flags().String("depth", "", "Refinement depth used with --rounds")
	cmd.Flags().Int("thinking-budget", 0, "Thinking token budget for gemini models that support it")
	cmd.Flags().StringSlice("tag", nil, "Tags stored with the history entry")
	cmd.Flags().Bool("no-history", false, "Do not record the result in history")
}

// request is a resolved set of per-call options.
type request struct {
	opts      optimizer.Options
	template  string
	tags      []string
	noHistory bool
}

func (a *app) requestOptions(cmd *cobra.Command) (request, error) {
	flags := cmd.Flags()
	req := request{opts: optimizer.Options{
		Model:          a.cfg.Model,
		Temperature:    a.cfg.Temperature,
		ThinkingBudget: a.cfg.ThinkingBudget,
	}}

	if flags.Changed("temperature") {
		req.opts.Temperature, _ = flags.GetFloat64("temperature")
	}

	strength := a.cfg.Strength
	if s, _ := flags.GetString("strength"); s != "" {
		strength = s
	}
	st, err := optimizer.ParseStrength(strength)
	if err != nil {
		return req, err
	}
	req.opts.Strength = st

	req.template = a.templates.Active()
	if a.cfg.Template != "" {
		req.template = a.cfg.Template
	}
	if t, _ := flags.GetString("template"); t != "" {
		req.template = t
	}
	if req.opts.Template, err = a.templateContent(req.template); err != nil {
		return req, err
	}

	mr, err := a.multiRound()
	if err != nil {
		return req, err
	}
	if flags.Changed("rounds") {
		mr.Enabled = true
		mr.Rounds, _ = flags.GetInt("rounds")
	}
	if d, _ := flags.GetString("depth"); d != "" {
		mr.Depth = d
	}
	if mr.Enabled {
		if mr.Rounds < 1 {
			return req, fmt.Errorf("rounds must be at least 1, got %d", mr.Rounds)
		}
		req.opts.MultiRound = &mr
	}

	if flags.Changed("thinking-budget") {
		b, _ := flags.GetInt("thinking-budget")
		req.opts.ThinkingBudget = &b
	}

	req.tags, _ = flags.GetStringSlice("tag")
	req.noHistory, _ = flags.GetBool("no-history")
	return req, nil
}

func (a *app) templateContent(name string) (string, error) {
	switch {
	case name == a.templates.Active():
		return a.templates.ActiveContent(), nil
	case name == template.Custom:
		if c := a.templates.Custom(); c != "" {
			return c, nil
		}
		s, _ := template.Builtin(template.Default)
		return s, nil
	}
	s, ok := template.Builtin(name)
	if !ok {
		return "", fmt.Errorf("unknown template %q, valid: %s", name, strings.Join(template.Names(), ", "))
	}
	return s, nil
}

func (a *app) runOptimize(ctx context.Context, text string, req request, extraTags []string) error {
	res, err := a.dispatcher.Dispatch(ctx, a.creds.Provider(), text, req.opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, res.Text)
	if a.verbose {
		fmt.Fprintln(a.errOut, a.styles.Muted.Render(fmt.Sprintf("%s · %s · %d attempt(s) · %s",
			res.Provider, res.Model, res.Attempts, res.Duration.Round(time.Millisecond))))
	}
	return a.record(text, res, req, extraTags)
}

func (a *app) record(original string, res *optimizer.Result, req request, extraTags []string) error {
	if req.noHistory {
		return nil
	}
	entry, err := a.history.Add(original, res.Text, history.Metadata{
		Template:    req.template,
		Model:       res.Model,
		Temperature: req.opts.Temperature,
		Strength:    string(req.opts.Strength),
		Provider:    string(res.Provider),
		Tags:        append(append([]string(nil), req.tags...), extraTags...),
	})
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	if entry != nil && a.verbose {
		fmt.Fprintln(a.errOut, a.styles.Muted.Render("saved as "+entry.ID))
	}
	return nil
}

func (a *app) compareTargets(names []string) ([]provider.ID, error) {
	if len(names) == 0 {
		ids := a.creds.Configured()
		if len(ids) == 0 {
			return nil, &provider.MissingCredentialError{Provider: a.creds.Provider()}
		}
		return ids, nil
	}
	ids := make([]provider.ID, 0, len(names))
	seen := make(map[provider.ID]bool)
	for _, n := range names {
		id, err := provider.ParseID(n)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type compareResult struct {
	id  provider.ID
	res *optimizer.Result
	err error
}

func (a *app) runCompare(ctx context.Context, text string, req request, ids []provider.ID) error {
	results := make([]compareResult, len(ids))

	var g errgroup.Group
	g.SetLimit(len(ids))
	for i, id := range ids {
		g.Go(func() error {
			res, err := a.dispatcher.Dispatch(ctx, id, text, req.opts)
			results[i] = compareResult{id: id, res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var (
		firstErr error
		ok       int
	)
	for _, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			printCompareFailure(a, r)
			continue
		}
		ok++
		printCompareSuccess(a, r)
		if err := a.record(text, r.res, req, []string{"compare"}); err != nil {
			return err
		}
	}
	if ok == 0 {
		return firstErr
	}
	return nil
}

func printCompareSuccess(a *app, r compareResult) {
	header := a.styles.Title.Render(fmt.Sprintf("%s · %s", r.id, r.res.Model)) + " " +
		a.styles.Muted.Render(r.res.Duration.Round(time.Millisecond).String())
	fmt.Fprintln(a.out, header)
	fmt.Fprintln(a.out, a.styles.Box.Render(r.res.Text))
	fmt.Fprintln(a.out)
}

func printCompareFailure(a *app, r compareResult) {
	fmt.Fprintln(a.out, a.styles.Title.Render(string(r.id)))
	fmt.Fprintln(a.out, renderError(r.err, a.styles))
	fmt.Fprintln(a.out)
}

// readPrompt joins args into the prompt, or reads stdin when args are empty
// or a single "-".
func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	if len(args) == 0 && cmd.InOrStdin() == os.Stdin && config.IsTerminal() {
		return "", errors.New("no prompt given: pass it as arguments or pipe it on stdin")
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
