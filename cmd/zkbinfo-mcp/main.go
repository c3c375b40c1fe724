// Command zkbinfo-mcp exposes a running zkbinfo daemon to MCP clients
// over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/zkb-tools/zkbinfo/pkg/mcp"
)

func main() {
	apiURL := os.Getenv("ZKBINFO_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}

	s := mcp.NewServer(apiURL)
	if err := s.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server failed: %v\n", err)
		os.Exit(1)
	}
}
