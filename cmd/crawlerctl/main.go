package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ethcrawler/internal/client"
	"ethcrawler/internal/config"
	"ethcrawler/internal/infrastructure/logging"
	"ethcrawler/internal/infrastructure/telemetry"
)

func main() {
	cfg, err := config.LoadClientFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	apiURL := flag.String("api", cfg.APIURL, "crawler API base url")
	address := flag.String("address", "", "wallet address; omit to read lookups from stdin")
	from := flag.String("from", "", "first block (default 0)")
	to := flag.String("to", "", "last block (default 99999999)")
	flag.Parse()

	logger, logWriter, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Stdout:     os.Stderr,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
		logger = slog.Default()
	}
	if logWriter != nil {
		defer logWriter.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "ethcrawler-ctl", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(ctx)
		}()
	}

	api, err := client.NewAPIClient(*apiURL, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		slog.Error("api client error", "err", err)
		os.Exit(1)
	}

	render := func(state client.State) {
		if err := client.Render(os.Stdout, state); err != nil {
			slog.Warn("render error", "err", err)
		}
	}
	controller, err := client.NewController(api, render, logger)
	if err != nil {
		slog.Error("controller error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *address != "" || flag.NArg() > 0 {
		input := client.Input{Address: *address, From: *from, To: *to}
		if input.Address == "" {
			input = parseLine(strings.Join(flag.Args(), " "))
		}
		controller.Submit(ctx, input)
		controller.Wait()
		if _, failed := controller.State().(client.ShowingError); failed {
			os.Exit(1)
		}
		return
	}

	fmt.Fprintln(os.Stderr, "enter: <address> [from] [to]")
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			controller.Close()
			return
		case line, ok := <-lines:
			if !ok {
				controller.Wait()
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			controller.Submit(ctx, parseLine(line))
		}
	}
}

// parseLine splits "<address> [from] [to]" into form input.
func parseLine(line string) client.Input {
	fields := strings.Fields(line)
	var input client.Input
	if len(fields) > 0 {
		input.Address = fields[0]
	}
	if len(fields) > 1 {
		input.From = fields[1]
	}
	if len(fields) > 2 {
		input.To = fields[2]
	}
	return input
}
