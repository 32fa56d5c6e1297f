package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mohammad-safakhou/scholar/internal/helpers"
	"github.com/mohammad-safakhou/scholar/internal/research"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	refStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	topicStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

func searchCMD(cfgPath *string) *cobra.Command {
	var maxResults int
	var search = &cobra.Command{
		Use:   "search <query>",
		Short: "Search the configured paper providers and print the ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath, io.Discard)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = a.Close(ctx)
			}()

			if maxResults <= 0 {
				maxResults = a.cfg.Search.DefaultMaxResults
			}
			query := strings.Join(args, " ")
			papers, err := a.search.Search(cmd.Context(), query, maxResults)
			if err != nil {
				return err
			}
			renderPapers(os.Stdout, query, research.Rank(papers))
			return nil
		},
	}
	search.Flags().IntVarP(&maxResults, "max-results", "n", 0, "number of papers (default search.default_max_results)")
	return search
}

func renderPapers(w io.Writer, query string, papers []models.Paper) {
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d papers for %q", len(papers), query)))
	for i, p := range papers {
		_, _ = fmt.Fprintf(w, "\n%s %s\n", scoreStyle.Render(strconv.Itoa(i+1)+"."), titleStyle.Render(p.Title))
		_, _ = fmt.Fprintln(w, "   "+refStyle.Render(helpers.FormatPaperCitation(helpers.PaperRef{Title: p.Title, Authors: p.Authors, Year: p.Year})))
		_, _ = fmt.Fprintln(w, "   relevance "+scoreStyle.Render(strconv.FormatFloat(p.Relevance, 'f', 2, 64)))
		if len(p.Topics) > 0 {
			_, _ = fmt.Fprintln(w, "   "+topicStyle.Render(strings.Join(p.Topics, ", ")))
		}
		if p.URL != "" {
			_, _ = fmt.Fprintln(w, "   "+refStyle.Render(p.URL))
		}
		if finding := helpers.KeyFinding(p.Abstract); finding != "" {
			_, _ = fmt.Fprintln(w, "   "+finding)
		}
	}
}
