// Package cli implements the pagerag command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagerag/internal/config"
	"pagerag/internal/credentials"
	"pagerag/internal/logger"
)

// app carries the state shared by every command once flags are parsed.
type app struct {
	cfgPath string
	verbose bool
	token   string

	cfg   *config.AppConfig
	log   *zap.Logger
	creds *credentials.Resolver
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pagerag",
		Short: "Ask questions about Confluence spaces and websites",
		Long: `pagerag fetches the pages of a Confluence space or a website, splits their
text into chunks, indexes the chunks and answers questions from them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "",
		"path to YAML config file (default ./config.yaml or ~/.config/pagerag/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")
	root.PersistentFlags().StringVar(&a.token, "token", "",
		"API token for authenticated sources (overrides the environment)")

	root.AddCommand(
		newIngestCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newSitemapCmd(a),
	)
	return root
}

func (a *app) init() error {
	log, err := logger.New(a.verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.log = log

	var cfg *config.AppConfig
	if a.cfgPath == "" {
		var path string
		cfg, path, err = config.LoadDefault()
		a.cfgPath = path
	} else {
		cfg, err = config.Load(a.cfgPath)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.log.Debug("config loaded", zap.String("path", a.cfgPath))

	a.creds, err = credentials.NewResolver(nil, cfg.EnvFiles...)
	if err != nil {
		return err
	}
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		log, lerr := logger.New(false)
		if lerr != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		log.Error("command failed", zap.Error(err))
		_ = log.Sync()
		return 1
	}
	return 0
}
