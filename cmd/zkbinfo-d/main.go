package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zkb-tools/zkbinfo/pkg/api"
	"github.com/zkb-tools/zkbinfo/pkg/store"
	"github.com/zkb-tools/zkbinfo/pkg/sweep"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"zkbinfo-d"}`)

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	st, err := store.NewStoreWithPool(cfg.DBPath, cfg.PoolSize)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_store","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"store_initialized","path":"%s","pool_size":%d}`+"\n", cfg.DBPath, cfg.PoolSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := sweep.NewWorker(st, sweep.Config{
		Horizon:  cfg.Retention,
		Interval: cfg.SweepInterval,
	})
	go sweeper.Run(ctx)
	fmt.Printf(`{"level":"info","msg":"sweeper_started","horizon":"%s","interval":"%s"}`+"\n", cfg.Retention, cfg.SweepInterval)

	server := api.NewServer(st, api.NewCounters(), cfg.Lookback, cfg.Addr)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)
	case err := <-serverErr:
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"server_failed","error":"%v"}`+"\n", err)
			os.Exit(1)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_server","error":"%v"}`+"\n", err)
	}

	if err := st.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_store","error":"%v"}`+"\n", err)
	} else {
		fmt.Println(`{"level":"info","msg":"store_closed"}`)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}
