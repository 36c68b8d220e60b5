package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zkgm/chains"
	"zkgm/channel"
	"zkgm/indexer"
)

var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Look up channels between chains",
}

var channelResolveCmd = &cobra.Command{
	Use:   "resolve <source> <destination>",
	Short: "Print the single channel from source to destination",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := channelRegistry()
		if err != nil {
			return err
		}
		ch, err := reg.Resolve(cmd.Context(), chains.UniversalChainID(args[0]), chains.UniversalChainID(args[1]))
		if err != nil {
			return err
		}
		return printJSON(cmd, ch)
	},
}

// channelRegistry reads channels from the configured file, or from the
// indexer when no file is set.
func channelRegistry() (*channel.Registry, error) {
	var source channel.Source
	switch {
	case cfg.Channels.File != "":
		s, err := channel.LoadStaticSource(cfg.Channels.File)
		if err != nil {
			return nil, err
		}
		source = s
	case cfg.Indexer.URL != "":
		idx, err := newIndexer()
		if err != nil {
			return nil, err
		}
		source = idx
	default:
		return nil, fmt.Errorf("no channel source: set channels.file or indexer.url")
	}
	return channel.NewRegistry(source, cfg.Channels.CacheSize, logger)
}

func newIndexer() (*indexer.Client, error) {
	return indexer.New(indexer.Config{
		URL:          cfg.Indexer.URL,
		PollInterval: cfg.Indexer.PollInterval,
		Timeout:      cfg.Indexer.Timeout,
		Logger:       logger,
	})
}

func init() {
	rootCmd.AddCommand(channelCmd)
	channelCmd.AddCommand(channelResolveCmd)
}
