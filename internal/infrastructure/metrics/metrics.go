package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// WalletOperations 按操作与结果统计钱包操作次数
	WalletOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinledger_wallet_operations_total",
			Help: "Wallet operations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	OutboxSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinledger_outbox_sent_total",
		Help: "Outbox messages published.",
	})

	OutboxFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinledger_outbox_failed_total",
		Help: "Outbox messages that exhausted their retries.",
	})

	ReconcileMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinledger_reconcile_mismatches_total",
		Help: "Accounts whose balance disagrees with settled transactions.",
	})
)

// Observe 记录一次钱包操作
func Observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	WalletOperations.WithLabelValues(operation, result).Inc()
}

// Server 指标与健康检查 HTTP 服务
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer 注册 /metrics 与 /healthz，health 为空时始终返回 ok
func NewServer(port int, health func(ctx context.Context) error, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
