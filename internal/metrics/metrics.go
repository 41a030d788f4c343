package metrics

import (
	"context"
	"net"
	"net/http"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"codeberg.org/mutker/dalybms-bridge/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type service struct {
	cfg       Config
	log       logger.Logger
	registry  *prometheus.Registry
	reads     *prometheus.CounterVec
	publishes *prometheus.CounterVec
	server    *http.Server
}

// No-op implementation
type noopService struct{}

func NewService(cfg Config, source SnapshotSource, log logger.Logger) (Service, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op service
	if !cfg.Enabled {
		log.Debug().Msg("Metrics disabled, using no-op service")
		return &noopService{}, nil
	}

	s := &service{
		cfg:      cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dalybms_read_cycles_total",
			Help: "Read cycles by outcome (ok, no_data, fault)",
		}, []string{"outcome"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dalybms_publish_total",
			Help: "Publish cycles by result (ok, error)",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		NewCollector(source),
		s.reads,
		s.publishes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := s.registry.Register(c); err != nil {
			return nil, errFactory.Wrap(ErrRegisterFailed, err)
		}
	}

	log.Debug().
		Str("listen_address", cfg.ListenAddress).
		Bool("enabled", cfg.Enabled).
		Msg("Metrics service initialized successfully")

	return s, nil
}

func (s *service) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *service) ObserveRead(outcome string) {
	s.reads.WithLabelValues(outcome).Inc()
}

func (s *service) ObservePublish(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.publishes.WithLabelValues(result).Inc()
}

// Start listens on the configured address and serves /metrics in the
// background until Close.
func (s *service) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return errors.New().Wrap(ErrListenFailed, err)
	}

	s.server = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	s.log.Info().
		Str("address", ln.Addr().String()).
		Str("path", metricsPath).
		Msg("Serving metrics")

	return nil
}

func (s *service) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	return nil
}

// No-op implementation
func (*noopService) ObserveRead(string)          {}
func (*noopService) ObservePublish(error)        {}
func (*noopService) Start(context.Context) error { return nil }
func (*noopService) Close() error                { return nil }
