package main

import (
	"github.com/spf13/cobra"

	"github.com/oscara1796/vecsearch/pkg/config"
	"github.com/oscara1796/vecsearch/pkg/logger"
)

type globalOptions struct {
	configPath string
	corpusPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	qopts := &queryOptions{}

	root := &cobra.Command{
		Use:           "vsearch",
		Short:         "Cosine-similarity text search",
		Long:          `vsearch ranks the documents of a corpus by cosine similarity to a search term.`,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, qopts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.corpusPath, "corpus", "", "YAML or JSON-lines corpus file (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	addQueryFlags(root, qopts)

	root.AddCommand(newQueryCmd(opts), newServeCmd(opts), newStatsCmd(opts))
	return root
}

// loadConfig reads the config, applies command-line overrides and points
// logging at stderr.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.corpusPath != "" {
		cfg.Corpus.Source = config.CorpusFile
		cfg.Corpus.Path = opts.corpusPath
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
