package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indigo-web/h1/config"
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/status"
	serverhttp "github.com/indigo-web/h1/internal/server/http"
	"github.com/indigo-web/h1/kv"
	"github.com/indigo-web/h1/transport"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const envPrefix = "H1_"

type echoResponse struct {
	Method   string              `json:"method"`
	URL      string              `json:"url"`
	Version  string              `json:"version"`
	Headers  map[string][]string `json:"headers"`
	Trailers map[string][]string `json:"trailers,omitempty"`
	Body     string              `json:"body"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.FromEnv(envPrefix)
	if err != nil {
		logger.Error("failed to load the configuration", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	reg := prometheus.NewRegistry()
	server := serverhttp.NewServer(cfg, echo,
		serverhttp.WithLogger(logger),
		serverhttp.WithMetrics(serverhttp.NewMetrics("h1", reg)),
		serverhttp.WithUpgradeHandler(rawEcho),
	)

	tcp := transport.NewTCP()
	if err = tcp.Bind(cfg.HTTP.Addr); err != nil {
		logger.Error("failed to bind", slog.String("addr", cfg.HTTP.Addr), slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("listening", slog.String("addr", tcp.Addr().String()))

	g.Go(func() error {
		return tcp.Listen(cfg.NET, func(conn net.Conn) {
			buff := make([]byte, cfg.NET.ReadBufferSize)
			server.Serve(transport.NewClient(conn, cfg.NET.ReadTimeout, buff))
		})
	})

	g.Go(func() error {
		<-ctx.Done()
		tcp.Stop()
		tcp.Wait()
		tcp.Close()
		return nil
	})

	if len(cfg.HTTP.MetricsAddr) > 0 {
		startMetrics(g, ctx, cfg.HTTP.MetricsAddr, reg, logger)
	}

	g.Go(func() error {
		return stopSignalHandler(ctx, cancel, logger)
	})

	if err = g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("h1serve terminated with error: %s", err))
	} else {
		logger.Info("h1serve stopped")
	}
}

// echo responds with a JSON description of the request.
func echo(req *http.IncomingMessage, resp *http.ServerResponse) {
	req.Collect(func(body []byte) error {
		return resp.JSON(echoResponse{
			Method:   req.MethodName(),
			URL:      req.URL(),
			Version:  req.HTTPVersion(),
			Headers:  toMap(req.Headers()),
			Trailers: toMap(req.Trailers()),
			Body:     string(body),
		})
	})
}

func toMap(storage *kv.Storage) map[string][]string {
	if storage.Empty() {
		return nil
	}

	m := make(map[string][]string, storage.Len())
	for _, pair := range storage.Expose() {
		m[pair.Key] = append(m[pair.Key], pair.Value)
	}

	return m
}

// rawEcho switches the connection to a protocol sending back everything it receives.
func rawEcho(req *http.IncomingMessage, client transport.Client) {
	resp := http.NewServerResponse(client, req, true)
	headers := kv.New().
		Add("Upgrade", req.Headers().Value("upgrade")).
		Add("Connection", "Upgrade")
	if err := resp.WriteHead(status.SwitchingProtocols, "", headers); err != nil {
		return
	}

	if err := resp.End(); err != nil {
		return
	}

	for {
		data, err := client.Read()
		if err != nil {
			return
		}

		if _, err = client.Write(data); err != nil {
			return
		}
	}
}

func startMetrics(g *errgroup.Group, ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})
}

func stopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-c:
		logger.Info("received shutdown signal")
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
