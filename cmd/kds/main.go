package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"foodtruck-kds/internal/board"
	boardhandler "foodtruck-kds/internal/board/handler"
	"foodtruck-kds/internal/clockx"
	"foodtruck-kds/internal/commands"
	"foodtruck-kds/internal/common/config"
	"foodtruck-kds/internal/common/db"
	"foodtruck-kds/internal/common/httpx"
	"foodtruck-kds/internal/common/localdb"
	"foodtruck-kds/internal/common/logger"
	"foodtruck-kds/internal/common/mq"
	"foodtruck-kds/internal/feed"
	"foodtruck-kds/internal/optimistic"
	"foodtruck-kds/internal/rank"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (default: probe config.yaml)")
	port := flag.Int("port", 0, "override display.listen_port")
	truck := flag.String("truck", "", "override display.truck_id")
	user := flag.String("user", "", "override display.user_id")
	flag.Parse()

	lg := logger.New("kds")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, lg, *cfgPath, *port, *truck, *user); err != nil {
		lg.Error("fatal", err, nil)
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *logger.Logger, cfgPath string, port int, truck, user string) error {
	if cfgPath == "" {
		found, err := config.FindConfig()
		if err != nil {
			return err
		}
		cfgPath = found
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Display.ListenPort = port
	}
	if truck != "" {
		cfg.Display.TruckID = truck
	}
	if user != "" {
		cfg.Display.UserID = user
	}

	pg, err := db.Connect(ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Pass, cfg.Database.Name)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer pg.Close()

	sharedTier := rank.NewPGTier(pg)
	if err := sharedTier.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("rank schema: %w", err)
	}

	local, err := localdb.Open(ctx, cfg.Display.LocalDBPath)
	if err != nil {
		return fmt.Errorf("local db open: %w", err)
	}
	defer local.Close()

	broker, err := mq.Dial(cfg.Rabbit.Host, cfg.Rabbit.Port, cfg.Rabbit.User, cfg.Rabbit.Pass)
	if err != nil {
		return fmt.Errorf("rabbitmq connect: %w", err)
	}
	defer broker.Close()
	if err := broker.DeclareFeed(); err != nil {
		return fmt.Errorf("declare feed: %w", err)
	}

	clock := clockx.NewSystem(cfg.Display.ServerOffsetMs)

	cache := optimistic.NewCache(optimistic.NewSQLiteStore(local), lg)
	cache.Restore(ctx)

	ranks := rank.NewStore(
		cfg.Display.UserID, cfg.Display.TruckID,
		rank.NewSQLiteTier(local), sharedTier,
		clock, cfg.Display.RankDebounce(), lg,
	)

	cmd := commands.New(cfg.Commands.BaseURL, cfg.Commands.Timeout())

	engine := board.New(
		cfg.Display.TruckID, clock,
		clockx.NewTicker(cfg.Display.Tick()),
		cache, ranks, cmd,
		cfg.Display.SubscribeTimeout(), lg,
	)

	snaps, err := feed.NewSubscriber(broker, cfg.Display.TruckID, lg).Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("feed subscribe: %w", err)
	}

	lg.Info("service_started", map[string]any{
		"truck_id": cfg.Display.TruckID,
		"user_id":  cfg.Display.UserID,
		"port":     cfg.Display.ListenPort,
	})

	mux := http.NewServeMux()
	boardhandler.NewBoardHandler(engine).Register(mux)

	// Either side failing takes the whole process down.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	engineErr := make(chan error, 1)
	go func() {
		engineErr <- engine.Run(runCtx, snaps)
		stop()
	}()

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- httpx.New(fmt.Sprintf(":%d", cfg.Display.ListenPort), mux).Run(runCtx)
		stop()
	}()

	if err := <-engineErr; err != nil {
		<-srvErr
		return err
	}
	return <-srvErr
}
