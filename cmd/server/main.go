// cmd/server/main.go
package main

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/slithercade/server/internal/config"
	"github.com/slithercade/server/internal/handlers"
	"github.com/slithercade/server/internal/middleware"
	"github.com/slithercade/server/internal/session"
)

func main() {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	manager := session.NewManager(cfg, logger)
	manager.StartSweeper()

	mux := http.NewServeMux()
	mux.Handle("/", middleware.LogMiddleware(logger)(handlers.HealthHandler(manager)))
	mux.Handle("/ws", handlers.WSHandler(logger, manager))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	l, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}

	manager.Shutdown()
	if err := server.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "server close: %v\n", err)
	}
}
