// Package service exposes health, metrics and the latest run results over HTTP.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ethereum-optimism/infra/op-orchestrator/metrics"
)

const (
	DefaultAPIHost = "0.0.0.0"
	DefaultAPIPort = 8080
)

type Config struct {
	APIHost string
	APIPort int

	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int
}

type Service struct {
	Config  Config
	Results *Results
	API     *Server
	Metrics *Server

	log log.Logger
}

func New(cfg Config, logger log.Logger) *Service {
	if cfg.APIHost == "" {
		cfg.APIHost = DefaultAPIHost
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = DefaultAPIPort
	}
	return &Service{
		Config:  cfg,
		Results: NewResults(),
		API:     &Server{},
		Metrics: &Server{},
		log:     logger,
	}
}

func (s *Service) Start(ctx context.Context) {
	s.log.Info("service starting")

	go func() {
		addr := net.JoinHostPort(s.Config.APIHost, strconv.Itoa(s.Config.APIPort))
		s.log.Info("starting api server", "addr", addr)
		if err := s.API.Start(ctx, addr, NewRouter(s.Results)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error starting api server", "err", err)
			metrics.RecordErrorDetails("service.api", err)
		}
	}()

	if s.Config.MetricsEnabled {
		go func() {
			addr := net.JoinHostPort(s.Config.MetricsHost, strconv.Itoa(s.Config.MetricsPort))
			s.log.Info("starting metrics server", "addr", addr)
			if err := s.Metrics.Start(ctx, addr, promhttp.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("service.metrics", err)
			}
		}()
	}

	s.log.Info("service started")
}

func (s *Service) Shutdown() {
	s.log.Info("service shutting down")

	_ = s.API.Shutdown()
	s.log.Info("api stopped")

	_ = s.Metrics.Shutdown()
	s.log.Info("metrics stopped")

	s.log.Info("service stopped")
}
