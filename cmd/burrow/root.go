package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/burrow/pkg/config"
	"github.com/walteh/burrow/pkg/engine"
	"github.com/walteh/burrow/pkg/log"
	"github.com/walteh/burrow/pkg/privilege"
	"github.com/walteh/burrow/pkg/sizecache"
	"github.com/walteh/burrow/pkg/status"
	"github.com/walteh/burrow/pkg/trash"
	"github.com/walteh/burrow/pkg/undo"
	"gitlab.com/tozd/go/errors"
)

var (
	// Flags
	configFile string
	debug      bool
)

// runtime bundles the initialized core components for one invocation
type runtime struct {
	cfg     *config.Config
	engine  *engine.Engine
	worker  *engine.Worker
	trash   *trash.Store
	cache   *sizecache.Cache
	history *undo.Stack
	priv    *privilege.Manager
	ui      *log.Logger
}

// newRuntime wires the engine and its collaborators from config
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(ctx, configFile)
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}

	store, err := trash.New(trash.Options{Root: cfg.TrashDir})
	if err != nil {
		return nil, errors.Errorf("creating trash store: %w", err)
	}

	cache := sizecache.New()
	eng, err := engine.New(engine.Options{
		Trash:     store,
		Cache:     cache,
		Reporter:  status.NewConsoleReporter(),
		Protected: cfg.Protected,
		Ignore:    cfg.Ignore,
	})
	if err != nil {
		return nil, errors.Errorf("creating engine: %w", err)
	}

	scope, err := cfg.Scope()
	if err != nil {
		return nil, err
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return &runtime{
		cfg:     cfg,
		engine:  eng,
		worker:  engine.NewWorker(ctx, eng, cfg.QueueSize),
		trash:   store,
		cache:   cache,
		history: undo.NewStack(),
		priv:    privilege.NewManager(privilege.SudoAuthenticator{}, scope),
		ui:      log.New(os.Stdout, level),
	}, nil
}

func (rt *runtime) close() {
	rt.worker.Close()
	rt.history.Clear()
}

// newRootCmd builds the burrow command tree
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "burrow",
		Short:         "safe, reversible, privilege-aware file operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", ".burrow.hcl", "config file path")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	root.AddCommand(
		newCopyCmd(),
		newMoveCmd(),
		newRemoveCmd(),
		newRenameCmd(),
		newCreateCmd(),
		newTrashCmd(),
		newSizeCmd(),
	)
	return root
}

// setupLogging configures zerolog based on flags
func setupLogging() {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}
