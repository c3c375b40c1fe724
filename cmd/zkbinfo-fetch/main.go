// Command zkbinfo-fetch reconciles one calendar day against
// zkillboard.com: it diffs the day's published killmail ids against
// what the daemon has stored, fetches the missing ones from ESI and
// saves them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/zkb-tools/zkbinfo/pkg/client"
)

const defaultAPI = "http://127.0.0.1:8080"

func main() {
	_ = godotenv.Load()

	flagSet := flag.NewFlagSet("zkbinfo-fetch", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
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

	args := flagSet.Args()
	if len(args) != 1 {
		fmt.Printf("Usage:\n\t%s [-api URL] <YYYY-MM-DD>\n", os.Args[0])
		os.Exit(1)
	}

	day, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"invalid_date","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	fmt.Printf(`{"level":"info","msg":"system_started","component":"zkbinfo-fetch","date":"%s"}`+"\n", args[0])

	fetcher := NewFetcher(client.NewClient(*apiURL))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report, err := fetcher.Reconcile(ctx, day)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"reconcile_failed","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	fmt.Printf(`{"level":"info","msg":"reconcile_complete","published":%d,"stored":%d,"fetched":%d,"failed":%d}`+"\n",
		report.Published, report.Stored, report.Fetched, report.Failed)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
