// Command healthcheck checks a local clipview daemon and exits 0 when it is
// healthy. It is meant for service managers and container health checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ericfisherdev/clipview/internal/config"
)

const checkTimeout = 2 * time.Second

type health struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

func main() {
	os.Exit(check(os.Getenv(config.EnvPrefix + "_LISTEN_ADDR")))
}

func check(rawAddr string) int {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/api/v1/health", dialAddr(rawAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}

	resp, err := (&http.Client{Timeout: checkTimeout}).Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unreachable:", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, "unhealthy: status", resp.StatusCode)
		return 1
	}

	var h health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil || h.Status != "ok" {
		fmt.Fprintln(os.Stderr, "unhealthy: unexpected body")
		return 1
	}

	return 0
}

// dialAddr returns the address to check, using loopback when the daemon
// binds every interface.
func dialAddr(raw string) string {
	if raw == "" {
		return config.DefaultListenAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return config.DefaultListenAddr
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
