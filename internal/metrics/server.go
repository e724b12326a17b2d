package metrics

import (
	"context"
	"errors"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var serverLog = logrus.WithField("component", "metrics")

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	// pprof：显式注册到我们的 mux，避免依赖 DefaultServeMux 的全局副作用
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// StartAsync 启动 metrics/debug 服务（非阻塞），并在 ctx.Done() 时优雅关闭。
// - expvar:     /debug/vars
// - prometheus: /metrics
// - pprof:      /debug/pprof
func StartAsync(ctx context.Context, listenAddr string) (*http.Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	s := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: newMux(),
	}

	go func() {
		if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLog.Warnf("metrics 服务退出: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	serverLog.Infof("metrics 服务已启动: %s", s.Addr)
	return s, nil
}
