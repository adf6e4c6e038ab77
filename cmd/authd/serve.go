package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/AppsFlyer/go-sundheit/checks"
	gosundheithttp "github.com/AppsFlyer/go-sundheit/http"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/endpoints"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/hostadapter"
	"github.com/openauthd/engine/internal/memstore"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/tokens"
)

func commandServe() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve [flags] [config file]",
		Short:   "Launch the authorization server",
		Example: "authd serve config.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return runServe(args[0])
		},
	}
	return cmd
}

// serverRunner pairs an *http.Server with the oklog/run.Group lifecycle it
// runs under, grounded verbatim on the teacher's serverRunner (cmd/dex/
// serve.go): a graceful listen/serve actor plus a bounded-timeout shutdown
// interrupt, so one run.Group can host the web listener and the telemetry
// listener side by side and bring both down together on signal.
type serverRunner struct {
	name string
	srv  *http.Server

	tlsCrt string
	tlsKey string

	logger *logrus.Logger
}

func newServerRunner(name string, srv *http.Server, logger *logrus.Logger) *serverRunner {
	return &serverRunner{name: name, srv: srv, logger: logger}
}

func (s *serverRunner) WithTLS(crt, key string) *serverRunner {
	s.tlsCrt = crt
	s.tlsKey = key
	return s
}

func (s *serverRunner) run(listener net.Listener) error {
	if s.tlsCrt != "" && s.tlsKey != "" {
		return s.srv.ServeTLS(listener, s.tlsCrt, s.tlsKey)
	}
	return s.srv.Serve(listener)
}

func (s *serverRunner) RunAndShutdownGracefully(gr *run.Group) error {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening (%s) on %s: %w", s.name, s.srv.Addr, err)
	}

	gr.Add(func() error {
		s.logger.Infof("listening (%s) on %s", s.name, s.srv.Addr)
		err := s.run(listener)
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		s.logger.Debugf("starting graceful shutdown (%s)", s.name)
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Errorf("graceful shutdown (%s): %v", s.name, err)
		}
	})
	return nil
}

func runServe(configFile string) error {
	c, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(c.Logger.Level, c.Logger.Format)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.Infof("config issuer: %s", c.Issuer)

	o, err := c.toOptions()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	registry := handlerdesc.NewRegistry()
	dispatcher := engine.NewDispatcher(registry)
	stores := memstore.New().AsStores()
	issuer := tokens.NewIssuer(o, stores)

	endpoints.RegisterBuiltins(registry, endpoints.Deps{
		Options:    o,
		Issuer:     issuer,
		Dispatcher: dispatcher,
	})

	if err := options.Resolve(o, time.Now().UTC()); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	eng := engine.New(o, stores, registry, logger)

	prometheusRegistry := prometheus.NewRegistry()
	if err := prometheusRegistry.Register(prometheus.NewGoCollector()); err != nil {
		return fmt.Errorf("failed to register Go runtime metrics: %w", err)
	}
	if err := prometheusRegistry.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		return fmt.Errorf("failed to register process metrics: %w", err)
	}

	router := hostadapter.NewRouter(eng, hostadapter.Config{
		AllowedOrigins:     c.Web.AllowedOrigins,
		AllowedHeaders:     c.Web.AllowedHeaders,
		PrometheusRegistry: prometheusRegistry,
	})

	healthChecker := gosundheit.New()
	healthChecker.RegisterCheck(&gosundheit.Config{
		Check: &checks.CustomCheck{
			CheckName: "storage",
			CheckFunc: hostadapter.NewStorageHealthCheckFunc(stores, func() time.Time { return time.Now().UTC() }),
		},
		ExecutionPeriod:  15 * time.Second,
		InitiallyPassing: true,
	})

	telemetryRouter := http.NewServeMux()
	telemetryRouter.Handle("/metrics", promhttp.HandlerFor(prometheusRegistry, promhttp.HandlerOpts{}))
	healthHandler := gosundheithttp.HandleHealthJSON(healthChecker)
	telemetryRouter.Handle("/healthz", healthHandler)
	telemetryRouter.HandleFunc("/healthz/live", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	telemetryRouter.Handle("/healthz/ready", healthHandler)

	var gr run.Group
	if c.Telemetry.HTTP != "" {
		telemetrySrv := &http.Server{Addr: c.Telemetry.HTTP, Handler: telemetryRouter}
		defer telemetrySrv.Close()
		if err := newServerRunner("http/telemetry", telemetrySrv, logger).RunAndShutdownGracefully(&gr); err != nil {
			return err
		}
	}

	if c.Web.HTTP != "" {
		httpSrv := &http.Server{Addr: c.Web.HTTP, Handler: router}
		defer httpSrv.Close()
		if err := newServerRunner("http", httpSrv, logger).RunAndShutdownGracefully(&gr); err != nil {
			return err
		}
	}

	if c.Web.HTTPS != "" {
		httpsSrv := &http.Server{Addr: c.Web.HTTPS, Handler: router}
		defer httpsSrv.Close()
		runner := newServerRunner("https", httpsSrv, logger).WithTLS(c.Web.TLSCert, c.Web.TLSKey)
		if err := runner.RunAndShutdownGracefully(&gr); err != nil {
			return err
		}
	}

	gr.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))

	return gr.Run()
}
