package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"zkgm/config"
)

var (
	cfgFile string
	cfg     config.Config
	logger  = log.StandardLogger()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "zkgm",
	Short:        "Build, inspect and track ZKGM packets",
	Long:         `zkgm encodes and decodes UCS03 instructions and packets, generates salts, resolves channels and multisig proposals, and serves the same over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.zkgm.toml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	l, err := c.Log.Logger()
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads the named file, or stdin when the name is empty or "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
