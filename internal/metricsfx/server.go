package metricsfx

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/wpbackup/pkg/http/middleware"
)

const (
	ConfigServerAddress      = "server.address"
	ConfigServerTimeoutRead  = "server.timeout.read"
	ConfigServerTimeoutWrite = "server.timeout.write"
	ConfigServerLogRequests  = "server.log.requests"
)

type HttpServerConfig struct {
	Address           string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	EnableRequestsLog bool
}

func HttpServerConfigProvider(v *viper.Viper) (*HttpServerConfig, error) {
	return &HttpServerConfig{
		Address:           v.GetString(ConfigServerAddress),
		ReadTimeout:       v.GetDuration(ConfigServerTimeoutRead),
		WriteTimeout:      v.GetDuration(ConfigServerTimeoutWrite),
		EnableRequestsLog: v.GetBool(ConfigServerLogRequests),
	}, nil
}

func HttpServer(
	config *HttpServerConfig,
	logger *logrus.Logger,
	defaultLogger *log.Logger,
	router *mux.Router,
) (*http.Server, error) {
	var h http.Handler = router

	if config.EnableRequestsLog {
		h = middleware.WithRequestLogging(router, logger)
	}

	h = middleware.WithRequestId(h, middleware.DefaultRequestIdProvider)

	return &http.Server{
		Addr:         config.Address,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		ErrorLog:     defaultLogger,
		Handler:      h,
	}, nil
}

func HttpRouter() (*mux.Router, error) {
	return mux.NewRouter(), nil
}

func Listener(config *HttpServerConfig) (net.Listener, error) {
	l, err := net.Listen("tcp", config.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to listen on %s", config.Address)
	}

	return l, nil
}

func RunServer(lc fx.Lifecycle, listener net.Listener, server *http.Server, logger *logrus.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.WithField("address", listener.Addr().String()).Info("Serving metrics")

			go func() {
				if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("Metrics server stopped")
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
