package main

import (
	"context"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stratumweb/stratum/compress"
	"github.com/stratumweb/stratum/http"
	"github.com/stratumweb/stratum/otelx"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, "stratum")
	if err != nil {
		return err
	}
	defer otelShutdown(context.Background())

	logger := otelx.Logger("stratum")

	cfg := http.DefaultConfig()
	cfg.Addr = "0.0.0.0:8080"

	server, err := http.NewServer(cfg, func(ctx *http.RequestCtx) {
		switch ctx.Request.Location.Path {
		case "/":
			ctx.WriteString("text/plain; charset=utf-8", "hello world\n")
		case "/echo":
			if name, ok := ctx.Request.Args["name"]; ok {
				ctx.WriteString("text/plain; charset=utf-8", name+"\n")
				return
			}
			if name, ok := ctx.Request.QueryArgs["name"]; ok {
				ctx.WriteString("text/plain; charset=utf-8", name+"\n")
				return
			}
			ctx.SetStatus(http.StatusBadRequest)
		default:
			ctx.SetStatus(http.StatusNotFound)
		}
	})
	if err != nil {
		return err
	}
	server.SetLogger(logger)
	server.SetCompressor(compress.NewManager())

	// Prometheus scrape endpoint on a sidecar listener
	go func() {
		mux := nethttp.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := nethttp.ListenAndServe("0.0.0.0:9090", mux); err != nil {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		stop()
	}

	return server.Shutdown(context.Background())
}
