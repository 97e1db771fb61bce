package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kbukum/mediaflow/config"
	"github.com/kbukum/mediaflow/engine"
	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/version"
)

type rootFlags struct {
	configFile string
	envFile    string
	pipelines  []string
	store      string
	dataDir    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "mediaflow",
		Short: "Run multimedia retrieval pipelines",
		Long: "mediaflow builds pipelines of operators from declarative definitions\n" +
			"and runs them as jobs, one-shot or behind an HTTP API.",
		Version:       version.GetShortVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	f := root.PersistentFlags()
	f.StringVarP(&flags.configFile, "config", "c", "", "config file (default: search config.yml)")
	f.StringVar(&flags.envFile, "env-file", "", ".env file to load")
	f.StringSliceVarP(&flags.pipelines, "pipelines", "p", nil, "pipeline directories (overrides config)")
	f.StringVar(&flags.store, "store", "", "descriptor store backend: memory, blackhole, jsonl, badger")
	f.StringVar(&flags.dataDir, "data-dir", "", "root for descriptors, artifacts and cache")

	root.AddCommand(
		newRunCmd(flags),
		newValidateCmd(flags),
		newOperatorsCmd(flags),
		newPipelinesCmd(flags),
		newServeCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration and applies command-line overrides.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	var opts []config.LoaderOption
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	if f.envFile != "" {
		opts = append(opts, config.WithEnvFile(f.envFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	if len(f.pipelines) > 0 {
		cfg.Pipelines.Dirs = f.pipelines
	}
	if f.dataDir != "" {
		cfg.Store.Path = filepath.Join(f.dataDir, "descriptors")
		cfg.Resolver.BasePath = filepath.Join(f.dataDir, "artifacts")
		cfg.Cache.Dir = filepath.Join(f.dataDir, "cache")
	}
	if f.store != "" {
		cfg.Store.Backend = f.store
		if cfg.Store.Path == "" {
			cfg.Store.Path = "./data/descriptors"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(cfg.Logging)
	return cfg, nil
}

func (f *rootFlags) openEngine(ctx context.Context) (*engine.Engine, *config.Config, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	e, err := engine.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return e, cfg, nil
}
