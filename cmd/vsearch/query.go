package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oscara1796/vecsearch/internal/corpus"
	"github.com/oscara1796/vecsearch/internal/indexer"
	"github.com/oscara1796/vecsearch/internal/searcher/ranker"
	"github.com/oscara1796/vecsearch/pkg/config"
)

const prompt = "Enter Search Term: "

type queryOptions struct {
	query string
	limit int
}

func addQueryFlags(cmd *cobra.Command, opts *queryOptions) {
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "search term (skips the prompt)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of matches to print (0 prints all)")
}

func newQueryCmd(global *globalOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Prompt for a search term and print the matching documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, global, opts)
		},
	}
	addQueryFlags(cmd, opts)
	return cmd
}

func runQuery(cmd *cobra.Command, global *globalOptions, opts *queryOptions) error {
	cfg, err := loadConfig(cmd, global)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	snap, closeSource, err := buildSnapshot(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	query := opts.query
	if !cmd.Flags().Changed("query") {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
		query, err = readLine(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading search term: %w", err)
		}
	}

	matches := ranker.Rank(query, snap.Index, ranker.Options{
		ExcerptLength: cfg.Search.ExcerptLength,
		Limit:         opts.limit,
	})
	out := bufio.NewWriter(cmd.OutOrStdout())
	for _, m := range matches {
		fmt.Fprintf(out, "%s %s\n", strconv.FormatFloat(m.Score, 'g', -1, 64), m.Excerpt)
	}
	return out.Flush()
}

// buildSnapshot loads the configured corpus and builds one index snapshot.
// The returned close function is never nil.
func buildSnapshot(ctx context.Context, cfg *config.Config) (*indexer.Snapshot, func(), error) {
	src, closeSrc, err := corpus.Open(ctx, cfg)
	if err != nil {
		return nil, func() {}, err
	}
	release := func() { _ = closeSrc() }

	engine := indexer.NewEngine(src, cfg.Index, cfg.Corpus.LoadTimeout, nil)
	snap, err := engine.Reload(ctx)
	if err != nil {
		release()
		return nil, func() {}, err
	}
	return snap, release, nil
}

// readLine returns one line without its terminator. End of input without a
// newline still yields what was read.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
