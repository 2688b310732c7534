package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dhanuzh/betterprompt/internal/history"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse and manage past optimizations",
	}
	cmd.AddCommand(
		historyListCmd(),
		historyShowCmd(),
		historyDeleteCmd(),
		historyClearCmd(),
		historySearchCmd(),
		historyRateCmd(),
		historyTagCmd(),
		historyStatsCmd(),
		historyExportCmd(),
		historyImportCmd(),
	)
	return cmd
}

func historyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent optimizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			entries := a.history.All()
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			return printEntries(a.out, entries)
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of entries")
	return cmd
}

func printEntries(out io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries")
		return nil
	}
	fmt.Fprintf(out, "%-8s  %-16s  %-10s  %-8s  %-6s %s\n", "ID", "Date", "Provider", "Template", "Rating", "Prompt")
	for _, e := range entries {
		rating := "-"
		if e.Rating > 0 {
			rating = fmt.Sprintf("%d/5", e.Rating)
		}
		fmt.Fprintf(out, "%-8s  %-16s  %-10s  %-8s  %-6s %s\n",
			e.ID, e.Timestamp.Local().Format("2006-01-02 15:04"), e.Provider, e.Template, rating, truncate(e.Original, 50))
	}
	return nil
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			e, ok := a.history.Get(args[0])
			if !ok {
				return fmt.Errorf("history entry %q not found", args[0])
			}
			s := a.styles
			fmt.Fprintf(a.out, "%s %s\n", s.Label.Render("ID:"), e.ID)
			fmt.Fprintf(a.out, "%s %s\n", s.Label.Render("Date:"), e.Timestamp.Local().Format(time.RFC1123))
			fmt.Fprintf(a.out, "%s %s / %s\n", s.Label.Render("Provider:"), e.Provider, e.Model)
			fmt.Fprintf(a.out, "%s %s (%s, temperature %.2f)\n", s.Label.Render("Template:"), e.Template, e.Strength, e.Temperature)
			if e.Rating > 0 {
				fmt.Fprintf(a.out, "%s %d/5\n", s.Label.Render("Rating:"), e.Rating)
			}
			if len(e.Tags) > 0 {
				fmt.Fprintf(a.out, "%s %s\n", s.Label.Render("Tags:"), strings.Join(e.Tags, ", "))
			}
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, s.Title.Render("Original"))
			fmt.Fprintln(a.out, s.Box.Render(e.Original))
			fmt.Fprintln(a.out, s.Title.Render("Optimized"))
			fmt.Fprintln(a.out, s.Box.Render(e.Optimized))
			return nil
		},
	}
}

func historyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete one entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.history.Delete(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("history entry %q not found", args[0])
			}
			fmt.Fprintf(a.out, "Deleted %s\n", args[0])
			return nil
		},
	}
}

func historyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.history.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "History cleared")
			return nil
		},
	}
}

func historySearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [keywords...]",
		Short: "Find entries containing any of the keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f := history.Filter{}
			f.Template, _ = cmd.Flags().GetString("template")
			f.Provider, _ = cmd.Flags().GetString("by-provider")
			f.Rating, _ = cmd.Flags().GetInt("rating")
			if since, _ := cmd.Flags().GetString("since"); since != "" {
				if f.Since, err = parseDay(since); err != nil {
					return err
				}
			}
			if until, _ := cmd.Flags().GetString("until"); until != "" {
				if f.Until, err = parseDay(until); err != nil {
					return err
				}
				f.Until = f.Until.Add(24*time.Hour - time.Nanosecond)
			}
			return printEntries(a.out, a.history.Search(strings.Join(args, " "), f))
		},
	}
	cmd.Flags().String("template", "", "Only entries using this template")
	cmd.Flags().String("by-provider", "", "Only entries from this provider")
	cmd.Flags().Int("rating", 0, "Only entries with this rating")
	cmd.Flags().String("since", "", "Only entries on or after this day (YYYY-MM-DD)")
	cmd.Flags().String("until", "", "Only entries on or before this day (YYYY-MM-DD)")
	return cmd
}

func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func historyRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <id> <1-5>",
		Short: "Rate an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rating, err := strconv.Atoi(args[1])
			if err != nil || rating < 1 || rating > 5 {
				return fmt.Errorf("rating must be a number from 1 to 5, got %q", args[1])
			}
			ok, err := a.history.Rate(args[0], rating)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("history entry %q not found", args[0])
			}
			fmt.Fprintf(a.out, "Rated %s %d/5\n", args[0], rating)
			return nil
		},
	}
}

func historyTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag <id> [tags...]",
		Short: "Replace the tags of an entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.history.Tag(args[0], args[1:])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("history entry %q not found", args[0])
			}
			e, _ := a.history.Get(args[0])
			fmt.Fprintf(a.out, "Tags of %s: %s\n", e.ID, strings.Join(e.Tags, ", "))
			return nil
		},
	}
}

func historyStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.history.Statistics()
			s := a.styles
			fmt.Fprintf(a.out, "%s %d\n", s.Label.Render("Total:"), st.Total)
			fmt.Fprintf(a.out, "%s %d\n", s.Label.Render("Last 7 days:"), st.RecentActivity)
			if st.AverageRating > 0 {
				fmt.Fprintf(a.out, "%s %.1f\n", s.Label.Render("Average rating:"), st.AverageRating)
			}
			printCounts(a, "Templates", st.Templates)
			printCounts(a, "Providers", st.Providers)
			return nil
		},
	}
}

func printCounts(a *app, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Fprintln(a.out, a.styles.Title.Render(title))
	for _, k := range keys {
		fmt.Fprintf(a.out, "  %-12s %d\n", k, counts[k])
	}
}

func historyExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the history as json, csv or markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			format, _ := cmd.Flags().GetString("format")
			data, err := a.history.Export(format)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			return writeOutput(a, output, data)
		},
	}
	cmd.Flags().StringP("format", "f", history.FormatJSON, "Export format (json, csv, markdown)")
	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func historyImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON history export",
		Long:  "Import a JSON history export. Entries are merged with the existing history unless --replace is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			replace, _ := cmd.Flags().GetBool("replace")
			res, err := a.history.Import(data, !replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported %d entries (%d added)\n", res.Count, res.Added)
			return nil
		},
	}
	cmd.Flags().Bool("replace", false, "Replace the history instead of merging")
	return cmd
}
