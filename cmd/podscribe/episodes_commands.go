package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"podscribe/internal/store"
	"podscribe/internal/textutil"
)

const titleColumnWidth = 60

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	episodesCmd := &cobra.Command{
		Use:   "episodes",
		Short: "Inspect archived episode transcripts",
	}

	episodesCmd.AddCommand(newEpisodesListCommand(ctx))
	episodesCmd.AddCommand(newEpisodesShowCommand(ctx))
	episodesCmd.AddCommand(newEpisodesSearchCommand(ctx))

	return episodesCmd
}

func newEpisodesListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived episodes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := ctx.openArchive()
			if err != nil {
				return err
			}
			episodes := sortByDate(archive.Episodes())
			if limit > 0 && len(episodes) > limit {
				episodes = episodes[:limit]
			}
			if asJSON {
				return writeJSON(cmd, episodeSummaries(episodes))
			}
			printEpisodeTable(cmd.OutOrStdout(), episodes, "No episodes archived yet")
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of episodes to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newEpisodesShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one archived episode including its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := ctx.openArchive()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			episode, ok := archive.Get(id)
			if !ok {
				return fmt.Errorf("episode %s not found", id)
			}
			if asJSON {
				return writeJSON(cmd, episode)
			}
			printEpisode(cmd.OutOrStdout(), episode)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newEpisodesSearchCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles, summaries, transcripts, and tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := ctx.openArchive()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			matches := searchEpisodes(archive.Episodes(), query)
			if asJSON {
				return writeJSON(cmd, episodeSummaries(matches))
			}
			printEpisodeTable(cmd.OutOrStdout(), matches, fmt.Sprintf("No episodes match %q", query))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// searchEpisodes matches query against each record ignoring case and
// diacritics, returning hits newest first.
func searchEpisodes(episodes []store.Episode, query string) []store.Episode {
	matcher := textutil.NewMatcher()
	matches := make([]store.Episode, 0)
	for _, ep := range episodes {
		fields := append([]string{ep.Title, ep.Summary, ep.Content}, ep.Tags...)
		if matcher.ContainsAny(query, fields...) {
			matches = append(matches, ep)
		}
	}
	return sortByDate(matches)
}

// sortByDate orders episodes by date descending, keeping archive order for
// equal dates.
func sortByDate(episodes []store.Episode) []store.Episode {
	sorted := slices.Clone(episodes)
	slices.SortStableFunc(sorted, func(a, b store.Episode) int {
		return cmp.Compare(b.Date, a.Date)
	})
	return sorted
}

type episodeSummary struct {
	ID      string   `json:"id"`
	Date    string   `json:"date"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

func episodeSummaries(episodes []store.Episode) []episodeSummary {
	out := make([]episodeSummary, 0, len(episodes))
	for _, ep := range episodes {
		out = append(out, episodeSummary{
			ID:      ep.ID,
			Date:    ep.Date,
			Title:   ep.Title,
			Summary: ep.Summary,
			Tags:    ep.Tags,
		})
	}
	return out
}

func printEpisodeTable(out io.Writer, episodes []store.Episode, empty string) {
	if len(episodes) == 0 {
		fmt.Fprintln(out, empty)
		return
	}
	rows := make([][]string, 0, len(episodes))
	for _, ep := range episodes {
		rows = append(rows, []string{ep.Date, ep.ID, textutil.Truncate(textutil.CollapseWhitespace(ep.Title), titleColumnWidth, textutil.Ellipsis)})
	}
	fmt.Fprintln(out, renderTable([]string{"Date", "ID", "Title"}, rows, nil))
}

func printEpisode(out io.Writer, ep store.Episode) {
	fmt.Fprintf(out, "ID:      %s\n", ep.ID)
	fmt.Fprintf(out, "Date:    %s\n", ep.Date)
	fmt.Fprintf(out, "Title:   %s\n", ep.Title)
	if len(ep.Tags) > 0 {
		fmt.Fprintf(out, "Tags:    %s\n", strings.Join(ep.Tags, ", "))
	}
	if len(ep.Companies) > 0 {
		fmt.Fprintf(out, "Companies: %s\n", strings.Join(ep.Companies, ", "))
	}
	if ep.Summary != "" {
		fmt.Fprintf(out, "Summary: %s\n", ep.Summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, ep.Content)
}
