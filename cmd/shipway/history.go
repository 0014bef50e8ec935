package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/artpar/shipway/internal/shell/history"
)

func historyCmd(args []string, cfg *Config, log *slog.Logger) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run", "", "show one run in full")
	showEnv := fs.Bool("env", false, "with -run: decrypt and print the environment snapshot")
	targets := fs.Bool("targets", false, "list provisioned targets instead of runs")
	limit := fs.Int("limit", 20, "maximum rows to list")
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
		log.Error("no history store configured", "hint", "set history.path or SHIPWAY_HISTORY_PATH")
		return ExitConfigError
	}
	defer store.Close()

	switch {
	case *runID != "":
		return showRun(ctx, store, *runID, *showEnv, cfg, log)
	case *targets:
		return listTargets(ctx, store, *limit, log)
	default:
		return listRuns(ctx, store, *limit, log)
	}
}

func listRuns(ctx context.Context, store *history.Store, limit int, log *slog.Logger) int {
	runs, err := store.ListRuns(ctx, history.ListOptions{Limit: limit})
	if err != nil {
		log.Error("list runs", "error", err)
		return ExitHistoryError
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return ExitSuccess
	}

	for _, r := range runs {
		status := "ok"
		if r.Failed() {
			status = "FAILED"
		}
		fmt.Printf("%-8s  %s  %-6s  %-10s  %-18s  %-24s  %s\n",
			shortID(r.ID), r.FinishedAt.Local().Format("2006-01-02 15:04"),
			status, r.Mode, truncate(r.Name, 18), truncate(r.Target, 24), shortID(r.Revision))
	}
	return ExitSuccess
}

func listTargets(ctx context.Context, store *history.Store, limit int, log *slog.Logger) int {
	targets, err := store.ListTargets(ctx, history.ListOptions{Limit: limit})
	if err != nil {
		log.Error("list targets", "error", err)
		return ExitHistoryError
	}
	if len(targets) == 0 {
		fmt.Println("no targets recorded")
		return ExitSuccess
	}

	for _, t := range targets {
		state := "active"
		if t.DestroyedAt != nil {
			state = "destroyed " + t.DestroyedAt.Local().Format("2006-01-02")
		}
		fmt.Printf("%-8s  %-16s  %-12s  %-14s  %-15s  %s\n",
			shortID(t.ID), truncate(t.Name, 16), t.Provider, t.Region, t.PublicIP, state)
	}
	return ExitSuccess
}

func showRun(ctx context.Context, store *history.Store, id string, showEnv bool, cfg *Config, log *slog.Logger) int {
	run, err := resolveRun(ctx, store, id)
	if err != nil {
		log.Error("load run", "id", id, "error", err)
		return ExitHistoryError
	}

	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Name:     %s\n", run.Name)
	fmt.Printf("Mode:     %s\n", run.Mode)
	fmt.Printf("Target:   %s\n", run.Target)
	if run.Revision != "" {
		fmt.Printf("Revision: %s\n", run.Revision)
	}
	fmt.Printf("Stage:    %s\n", run.Stage)
	if run.Err != "" {
		fmt.Printf("Error:    %s\n", run.Err)
	}
	fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Printf("Finished: %s (%s)\n", run.FinishedAt.Local().Format(time.RFC3339),
		run.FinishedAt.Sub(run.StartedAt).Round(time.Second))

	if len(run.Artifacts) > 0 {
		fmt.Println("Artifacts:")
		for _, a := range run.Artifacts {
			fmt.Printf("  %-24s %s  %d bytes  sha256:%s\n", a.Unit, a.DNSLabel, a.Bytes, shortID(a.SHA256))
		}
	}
	if len(run.Results) > 0 {
		fmt.Println("Results:")
		for _, r := range run.Results {
			line := "  " + r.Unit
			if r.State != "" {
				line += "  " + r.State
			}
			if r.FQDN != "" {
				line += "  " + r.FQDN
			}
			if r.IP != "" {
				line += "  " + r.IP
			}
			fmt.Println(line)
		}
	}

	if showEnv {
		return printEnvSnapshot(run, historyKey(cfg))
	}
	return ExitSuccess
}

// resolveRun accepts full IDs and unique prefixes, so the IDs the listing
// prints can be pasted back in.
func resolveRun(ctx context.Context, store *history.Store, id string) (*history.Run, error) {
	run, err := store.GetRun(ctx, id)
	if err == nil || !errors.Is(err, history.ErrNotFound) {
		return run, err
	}

	runs, listErr := store.ListRuns(ctx, history.ListOptions{Limit: 1000})
	if listErr != nil {
		return nil, err
	}
	var match *history.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

func printEnvSnapshot(run *history.Run, key []byte) int {
	snap, err := history.DecryptEnv(run, key)
	if err != nil {
		fmt.Println("environment snapshot:", err)
		return ExitHistoryError
	}
	if snap == nil {
		fmt.Println("no environment snapshot recorded for this run")
		return ExitSuccess
	}

	services := make([]string, 0, len(snap))
	for svc := range snap {
		services = append(services, svc)
	}
	sort.Strings(services)
	for _, svc := range services {
		fmt.Printf("Environment (%s):\n", svc)
		keys := make([]string, 0, len(snap[svc]))
		for k := range snap[svc] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s=%s\n", k, snap[svc][k])
		}
	}
	return ExitSuccess
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
