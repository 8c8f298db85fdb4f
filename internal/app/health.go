package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/cli"
	"horse.fit/newsdesk/internal/config"
	"horse.fit/newsdesk/internal/httpapi"
	"horse.fit/newsdesk/internal/logging"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Per-check timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	checks, err := probeProviders(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build provider probes: %v\n", err)
		return 1
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		remote, err := cache.NewRedisRemote(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to configure redis: %v\n", err)
			return 1
		}
		checks["redis"] = remote.Ping
	}
	if len(checks) == 0 {
		fmt.Fprintln(os.Stderr, "No providers or cache backends configured")
		return 1
	}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		if err := runCheck(checks[name], *timeout); err != nil {
			fmt.Printf("%-10s FAIL  %v\n", name, err)
			failed++
			continue
		}
		fmt.Printf("%-10s OK\n", name)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func runCheck(check httpapi.HealthChecker, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return check(ctx)
}
