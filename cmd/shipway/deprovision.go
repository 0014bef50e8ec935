package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/shipway/internal/shell/provider"
)

func deprovisionCmd(args []string, cfg *Config, log *slog.Logger) int {
	fs := flag.NewFlagSet("deprovision", flag.ContinueOnError)
	name := fs.String("name", "", "target to destroy (default: the only active one)")
	keepRecord := fs.Bool("keep-instance", false, "mark the target destroyed without touching the provider")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	ctx := context.Background()
	ws := discoverWorkspace(log)
	store, err := openHistory(cfg, ws.Root)
	if err != nil {
		log.Error("open history store", "error", err)
		return ExitHistoryError
	}
	if store == nil {
		log.Error("deprovisioning requires the history store", "hint", "set history.path or SHIPWAY_HISTORY_PATH")
		return ExitConfigError
	}
	defer store.Close()

	tgt, err := provisionedTarget(ctx, store, *name)
	if err != nil {
		log.Error("resolve target", "error", err)
		return ExitConfigError
	}

	if !*keepRecord {
		prov, err := provider.New(tgt.Provider, processEnvValues(), log)
		if err != nil {
			log.Error("provider setup failed", "provider", tgt.Provider, "error", err)
			return ExitProviderError
		}
		log.Info("destroying instance", "name", tgt.Name, "provider", tgt.Provider, "instance_id", tgt.InstanceID)
		err = prov.DestroyInstance(ctx, provider.DestroyRequest{
			ProviderInstanceID: tgt.InstanceID,
			Name:               tgt.Name,
			Region:             tgt.Region,
		})
		if err != nil {
			log.Error("destroy instance failed", "instance_id", tgt.InstanceID, "error", err)
			return ExitProviderError
		}
	}

	if err := store.MarkTargetDestroyed(ctx, tgt.ID, time.Now().UTC()); err != nil {
		log.Error("instance destroyed but the record was not updated", "target", tgt.ID, "error", err)
		return ExitHistoryError
	}

	fmt.Printf("destroyed %s (%s @ %s/%s)\n", tgt.Name, tgt.InstanceID, tgt.Provider, tgt.Region)
	return ExitSuccess
}
