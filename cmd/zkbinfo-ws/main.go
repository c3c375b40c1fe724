// Command zkbinfo-ws subscribes to the zkillboard killstream websocket
// and forwards every killmail to a running zkbinfo daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zkb-tools/zkbinfo/pkg/client"
)

const (
	defaultStreamURL = "wss://zkillboard.com/websocket/"
	defaultChannel   = "killstream"
	defaultAPI       = "http://127.0.0.1:8080"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"zkbinfo-ws"}`)

	_ = godotenv.Load()

	flagSet := flag.NewFlagSet("zkbinfo-ws", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	streamURL := flagSet.String("stream", envOrDefault("ZKBINFO_STREAM_URL", defaultStreamURL), "killstream websocket URL")
	channel := flagSet.String("channel", envOrDefault("ZKBINFO_STREAM_CHANNEL", defaultChannel), "killstream channel to subscribe")
	apiURL := flagSet.String("api", envOrDefault("ZKBINFO_API_URL", defaultAPI), "zkbinfo daemon endpoint")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)
		cancel()
	}()

	sub := NewSubscriber(*streamURL, *channel, client.NewClient(*apiURL))
	sub.Run(ctx)

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
