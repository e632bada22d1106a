package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"skeetstats/internal/bsky"
	"skeetstats/internal/command"
	"skeetstats/internal/config"
	"skeetstats/internal/httpapi"
	"skeetstats/internal/jobs"
	"skeetstats/internal/logging"
	"skeetstats/internal/metrics"
	"skeetstats/internal/respond"
	"skeetstats/internal/session"
	"skeetstats/internal/store"
	"skeetstats/internal/theme"
)

func main() {
	_ = godotenv.Load()
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "run":
		cmdRun()
	case "poll":
		cmdPoll()
	case "broadcast":
		cmdBroadcast()
	case "snapshot":
		cmdSnapshot()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: skeetstats <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./skeetstats.yaml")
	fmt.Println("  run         Run the bot: poll loop, purge, broadcast, snapshot, read API")
	fmt.Println("  poll        Drain unread mentions once and exit")
	fmt.Println("  broadcast   Publish the membership-count broadcast once")
	fmt.Println("  snapshot    Record stats for every opted-in account once")
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./skeetstats.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

// runtime bundles everything a command needs after wiring.
type runtime struct {
	cfg        config.Config
	db         *store.DB
	client     *bsky.HTTPClient
	sessions   *session.Manager
	dispatcher *command.Dispatcher
}

func mustWire(ctx context.Context, cfgPath string) *runtime {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	logging.SetLogDir(cfg.Logs.Dir)
	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	client := bsky.NewHTTPClient(cfg.Account.Service)
	did, err := client.ResolveHandle(ctx, cfg.Account.Handle)
	if err != nil {
		fmt.Println("error resolving handle:", err)
		os.Exit(1)
	}
	sessions := session.NewManager(db, client, did, cfg.Account.Handle, cfg.Account.Password)
	responder := respond.New(sessions, client, db, cfg.Site.URL)
	dispatcher := command.NewDispatcher(sessions, client, db, responder)
	return &runtime{cfg: cfg, db: db, client: client, sessions: sessions, dispatcher: dispatcher}
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./skeetstats.yaml", "config path")
	_ = fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := mustWire(ctx, *cfgPath)
	defer rt.db.Close()
	theme.PrintBanner()
	logging.Info("starting", map[string]any{"handle": rt.cfg.Account.Handle, "did": rt.sessions.DID()})

	metrics.StartServer(rt.cfg.HTTP.MetricsAddr)
	if rt.cfg.HTTP.Addr != "" {
		api := httpapi.NewServer(rt.db, rt.sessions, rt.client, rt.cfg.Site.URL)
		go func() {
			if err := api.Run(rt.cfg.HTTP.Addr); err != nil {
				logging.Error("http_api_stopped", map[string]any{"error": err.Error()})
			}
		}()
	}
	go func() {
		_ = jobs.RunPurgeLoop(ctx, rt.db, rt.cfg.Poll.PurgeInterval)
	}()
	go func() {
		_ = jobs.RunBroadcastLoop(ctx, rt.db, rt.sessions, rt.client, rt.cfg.Site.URL,
			rt.cfg.Broadcast.Hour, rt.cfg.Broadcast.Minute)
	}()
	go func() {
		_ = jobs.RunSnapshotLoop(ctx, rt.db, rt.sessions, rt.client,
			rt.cfg.Snapshot.Hour, rt.cfg.Snapshot.Minute)
	}()
	_ = jobs.RunPollLoop(ctx, rt.db, rt.dispatcher, rt.cfg.Poll.Interval)
}

func cmdPoll() {
	fs := flag.NewFlagSet("poll", flag.ExitOnError)
	cfgPath := fs.String("config", "./skeetstats.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	rt := mustWire(ctx, *cfgPath)
	defer rt.db.Close()
	if err := jobs.RunPollOnce(ctx, rt.db, rt.dispatcher); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdBroadcast() {
	fs := flag.NewFlagSet("broadcast", flag.ExitOnError)
	cfgPath := fs.String("config", "./skeetstats.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	rt := mustWire(ctx, *cfgPath)
	defer rt.db.Close()
	if err := jobs.RunBroadcastOnce(ctx, rt.db, rt.sessions, rt.client, rt.cfg.Site.URL); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdSnapshot() {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	cfgPath := fs.String("config", "./skeetstats.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	rt := mustWire(ctx, *cfgPath)
	defer rt.db.Close()
	if err := jobs.RunSnapshotOnce(ctx, rt.db, rt.sessions, rt.client); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
