package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zkledger.dev/node/contracts/cash"
	"zkledger.dev/node/node"
	"zkledger.dev/node/serde/registry"
)

type options struct {
	configPath string
	dataDir    string
	logLevel   string
	digest     string
	backend    string
	peers      []string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "zkledger-node",
		Short:         "Backchain resolution and witness verification node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	f.StringVar(&opts.dataDir, "datadir", "", "node data directory")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")
	f.StringVar(&opts.digest, "digest", "", "digest service name")
	f.StringVar(&opts.backend, "backend", "", "proving backend: mock|groth16")
	f.StringSliceVar(&opts.peers, "peer", nil, "peer host:port (repeatable)")

	root.AddCommand(
		newConfigCmd(opts),
		newTypeIDCmd(),
		newIssueCmd(opts),
		newWitnessCmd(opts),
		newResolveCmd(opts),
		newVerifyCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// load applies flags over the config file, or over the defaults when no
// file is given.
func (o *options) load() (node.Config, error) {
	cfg := node.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = node.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.LogLevel = strings.ToLower(o.logLevel)
	}
	if o.digest != "" {
		cfg.Digest = o.digest
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if len(o.peers) > 0 {
		cfg.Peers = node.NormalizePeers(o.peers...)
	}
	return cfg, node.ValidateConfig(cfg)
}

func contracts() (*registry.Registry, error) {
	return registry.New(cash.Registrations()...)
}

// service opens the node described by the flags. The returned func closes
// the service and flushes the logger.
func (o *options) service() (*node.Service, func(), error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	logger, logCloser, err := node.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	reg, err := contracts()
	if err != nil {
		closeLogger(logger, logCloser)
		return nil, nil, err
	}
	svc, err := node.NewService(cfg, reg, logger)
	if err != nil {
		closeLogger(logger, logCloser)
		return nil, nil, err
	}
	return svc, func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
		closeLogger(logger, logCloser)
	}, nil
}

func closeLogger(logger *zap.Logger, c io.Closer) {
	_ = logger.Sync()
	_ = c.Close()
}
