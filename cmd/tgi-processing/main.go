// Command tgi-processing is the DAG-synchronization processing tier: it
// keeps a PostgreSQL store in sync with a node's view of the BlockDAG,
// first by bootstrap resync from the pruning point, then by following the
// node's live block-added and virtual-chain-changed notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	appconfig "github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/config"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/logging"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/nodeclient"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/store"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/syncengine"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "tgi-processing",
		Usage:   "sync a PostgreSQL store with a tondi node's BlockDAG",
		Version: version.Version,
		Flags:   appconfig.Flags,
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	cfg, err := appconfig.Load(cctx)
	if err != nil {
		return err
	}
	if cfg == nil {
		fmt.Println(appconfig.VersionString())
		return nil
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return err
	}
	entry := logrus.NewEntry(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.ConnectionString, entry)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := nodeclient.Dial(cfg.RPCServer)
	if err != nil {
		return err
	}
	defer client.Close()

	engine := syncengine.New(st, client, entry, syncengine.Options{
		Network:           cfg.Network(),
		ProcessingVersion: version.Version,
		ClearDB:           cfg.ClearDB,
		Resync:            cfg.Resync,
	})

	entry.WithFields(logrus.Fields{
		"network":   cfg.Network(),
		"rpcserver": cfg.RPCServer,
	}).Info("starting tondi-graph-inspector-processing")

	if err := engine.Bootstrap(ctx); err != nil {
		return err
	}

	err = engine.RunLiveNotifications(ctx)
	if errors.Is(err, context.Canceled) {
		entry.Info("shutting down")
		return nil
	}
	return err
}
