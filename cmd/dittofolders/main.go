// Command dittofolders runs folder operations against the configured
// storages.
//
// Usage:
//
//	dittofolders init [--force] [--config path]
//	dittofolders serve [--config path]
//	dittofolders <operation> [flags] [args]
//
// Run "dittofolders help" for the list of operations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/config"
	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/performer"
	"github.com/marmos91/dittofolders/pkg/registry"
)

const usage = `dittofolders - folder orchestration across storages

Usage:
  dittofolders <command> [flags] [args]

Commands:
  init                              Write a sample configuration file
  serve                             Open the storages, check them and expose metrics
  get <id>                          Show a folder
  list <parent>                     List the subfolders of a folder
  path <id>                         Show the path from a folder up to the root
  create <parent> <name>            Create a folder
  rename <id> <name>                Rename a folder
  move <id> <parent>                Move a folder
  subscribe <id> <target-parent>    Subscribe a folder into a target tree
  unsubscribe <id>                  Remove a subscription
  delete <id>                       Delete a folder and its subfolders
  trash <id>                        Move a folder to the trash
  clear <id>                        Remove the contents of a folder
  restore <id>...                   Restore trashed folders
  updates <since>                   Show folders changed since an RFC 3339 time
  search <query>                    Search folders by name
  visible                           Show the visible folders of a content type
  all-visible                       Show every visible folder of a content type
  shared                            Show the folders the user shares
  default                           Show the default folder of a content type
  check                             Repair the storages of a tree

Run "dittofolders <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command, args := os.Args[1], os.Args[2:]

	var err error
	switch command {
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "init":
		err = runInit(args)
	case "serve":
		err = runServe(args)
	default:
		op, ok := operations[command]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
			os.Exit(2)
		}
		err = runOperation(command, op, args)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code := folder.CodeOf(err); code != folder.ErrUnexpected {
			fmt.Fprintf(os.Stderr, "Code: %s\n", code)
		}
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	path := fs.String("config", "", "Path of the configuration file (default: user config dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", written)
		return nil
	}

	if err := config.InitConfigToPath(*path, *force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", *path)
	return nil
}

// app bundles the components built from the configuration.
type app struct {
	cfg     *config.Config
	reg     *registry.Registry
	svc     *performer.Service
	metrics *config.MetricsResult
}

// setup loads the configuration and opens every storage.
func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.Logging.Level)
	if err := logger.Configure(cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}

	a := &app{cfg: cfg}

	// Metrics first, so that storages pick up their collectors
	a.metrics = config.InitializeMetrics(cfg, a.healthy)

	a.reg, err = config.InitializeRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.svc, err = config.NewService(cfg, a.reg, a.metrics.Performer)
	if err != nil {
		_ = a.reg.Close()
		return nil, err
	}
	return a, nil
}

// healthy reports whether every storage can be reached.
func (a *app) healthy(ctx context.Context) error {
	if a.reg == nil {
		return fmt.Errorf("storages not initialized")
	}
	return a.reg.HealthCheck(ctx)
}

func (a *app) close() {
	if err := a.reg.Close(); err != nil {
		logger.Warn("Closing storages: %v", err)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.close()

	logger.Info("dittofolders started with %d tree(s) and %d storage(s)", len(a.cfg.Trees), a.reg.CountStorages())

	// Repair dangling references left by an earlier crash
	system := &folder.Session{}
	for _, tree := range a.reg.Trees() {
		if err := a.svc.CheckConsistency(ctx, system, tree.ID); err != nil {
			logger.Warn("Consistency check of tree %s failed: %v", tree.ID, err)
			continue
		}
		logger.Info("Tree %s (%s) is consistent", tree.ID, tree.Name)
	}

	serverDone := make(chan error, 1)
	if a.metrics.Server != nil {
		go func() {
			serverDone <- a.metrics.Server.Start(ctx)
		}()
		logger.Info("Metrics available on port %d", a.metrics.Server.Port())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	cancel()
	if a.metrics.Server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer stop()
		if err := a.metrics.Server.Stop(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error: %v", err)
		}
	}
	logger.Info("Stopped")
	return nil
}
