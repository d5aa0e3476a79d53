package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rtsm-protocol/rtsm-go/cmd/rtsm-node/interactive"
	"github.com/rtsm-protocol/rtsm-go/pkg/connection"
	"github.com/rtsm-protocol/rtsm-go/pkg/discovery"
	"github.com/rtsm-protocol/rtsm-go/pkg/log"
	"github.com/rtsm-protocol/rtsm-go/pkg/metrics"
	"github.com/rtsm-protocol/rtsm-go/pkg/persistence"
	"github.com/rtsm-protocol/rtsm-go/pkg/schema"
	"github.com/rtsm-protocol/rtsm-go/pkg/service"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
)

const (
	shutdownTimeout = 5 * time.Second

	// initialSyncDelay leaves time for peer replies to the introduction to
	// arrive before missing state is requested.
	initialSyncDelay = 2 * time.Second
)

func run(ctx context.Context, cfg Config, logger *slog.Logger, shell *interactive.Shell) error {
	if cfg.Broker == "" {
		broker, err := discoverBroker(ctx, cfg, logger)
		if err != nil {
			return err
		}
		cfg.Broker = broker
	}

	var reg *prometheus.Registry
	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = metrics.NewCollector(reg)
	}

	protocolLogger, closeLog, err := openProtocolLog(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	a := &app{cfg: cfg, logger: logger}
	if cfg.StateFile != "" {
		a.store = persistence.NewStateStore(cfg.StateFile)
	}

	svcConfig := service.DefaultConfig()
	svcConfig.Name = cfg.Name
	svcConfig.Broker = cfg.Broker
	svcConfig.Port = cfg.Port
	svcConfig.QoS = byte(cfg.QoS)
	svcConfig.CleanSession = cfg.CleanSession
	svcConfig.Handlers = a.handlers()
	svcConfig.Metrics = collector
	svcConfig.Logger = logger
	svcConfig.ProtocolLogger = protocolLogger

	lost := make(chan error, 1)
	mqttConfig := transport.DefaultMQTTConfig()
	mqttConfig.Logger = logger
	mqttConfig.OnConnectionLost = func(err error) {
		select {
		case lost <- err:
		default:
		}
	}

	node, err := service.New(transport.NewMQTTClient(mqttConfig), svcConfig)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	a.node = node

	withState, err := a.registerModels()
	if err != nil {
		return err
	}

	if err := a.introduce(ctx); err != nil {
		return fmt.Errorf("introduce: %w", err)
	}
	logger.Info("Node running", "id", node.ID(), "broker", cfg.Broker)

	for _, name := range withState {
		if err := node.AnnounceHasState(ctx, name, true); err != nil {
			logger.Warn("announce has-state failed", "model", name, "error", err)
		}
	}

	if cfg.Advertise {
		adv, err := a.advertise()
		if err != nil {
			logger.Warn("mDNS advertisement failed", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if reg != nil {
		g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, reg, logger) })
	}
	if cfg.AdoptState {
		g.Go(func() error {
			select {
			case <-time.After(initialSyncDelay):
				a.syncMissingState(gctx)
			case <-gctx.Done():
			}
			return nil
		})
	}
	if shell != nil {
		shell.SetBrowser(discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: cfg.Interface}))
		g.Go(func() error {
			shell.Run(gctx, node, cancel)
			return nil
		})
	}
	g.Go(func() error {
		select {
		case err := <-lost:
			return fmt.Errorf("broker connection lost: %w", err)
		case <-gctx.Done():
			return nil
		}
	})
	runErr := g.Wait()

	logger.Info("Shutting down...")
	a.saveState()
	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer closeCancel()
	return errors.Join(runErr, node.Close(closeCtx))
}

// app holds the node and the application's reactions to protocol events.
type app struct {
	cfg    Config
	logger *slog.Logger
	node   *service.Node
	store  *persistence.StateStore
}

// introduce retries the introduction while the broker is unreachable.
func (a *app) introduce(ctx context.Context) error {
	return connection.Retry(ctx, connection.NewBackoff(), connection.RetryConfig{
		MaxAttempts: a.cfg.ConnectAttempts,
		Retryable: func(err error) bool {
			return errors.Is(err, transport.ErrTransport)
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			a.logger.Warn("introduce failed, retrying", "attempt", attempt, "delay", delay.Round(time.Millisecond), "error", err)
		},
	}, a.node.Introduce)
}

// registerModels registers every configured model and loads initial state.
// It returns the names of the models that have state.
func (a *app) registerModels() ([]string, error) {
	for _, path := range a.cfg.Models {
		doc, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read model: %w", err)
		}
		id, err := a.node.RegisterModel(doc)
		if err != nil {
			return nil, fmt.Errorf("register model %s: %w", path, err)
		}
		a.logger.Info("Model registered", "id", id, "file", path)
	}

	var withState []string
	for name, path := range a.cfg.States {
		state, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read state: %w", err)
		}
		if !json.Valid(state) {
			return nil, fmt.Errorf("state %s: invalid JSON", path)
		}
		if err := a.node.SetState(name, state); err != nil {
			return nil, fmt.Errorf("set state %s: %w", name, err)
		}
		withState = append(withState, name)
	}

	restored, err := a.restoreState()
	if err != nil {
		return nil, err
	}
	return append(withState, restored...), nil
}

// restoreState sets saved state for models that have none. Saved state that
// no longer matches the model's schema is skipped.
func (a *app) restoreState() ([]string, error) {
	if a.store == nil {
		return nil, nil
	}
	saved, err := a.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state file: %w", err)
	}
	if saved == nil {
		return nil, nil
	}

	validator := schema.NewJSONSchemaValidator()
	var restored []string
	for _, m := range a.node.Models() {
		entry, ok := saved.Models[m.Name]
		if !ok || len(m.State) > 0 {
			continue
		}
		if !validator.Validate(m.Content, entry.State) {
			a.logger.Warn("saved state does not match model, skipping", "model", m.Name)
			continue
		}
		if err := a.node.SetState(m.Name, entry.State); err != nil {
			return nil, fmt.Errorf("restore state %s: %w", m.Name, err)
		}
		a.logger.Info("State restored", "model", m.Name, "updated", entry.UpdatedAt)
		restored = append(restored, m.Name)
	}
	return restored, nil
}

// saveState writes the state of every model to the state file.
func (a *app) saveState() {
	if a.store == nil {
		return
	}
	states := make(map[string]json.RawMessage)
	for _, m := range a.node.Models() {
		if len(m.State) > 0 {
			states[m.Name] = m.State
		}
	}
	if err := a.store.Snapshot(a.cfg.Name, states); err != nil {
		a.logger.Warn("save state failed", "file", a.store.Path(), "error", err)
	}
}

func (a *app) handlers() service.Handlers {
	return service.Handlers{
		OnDeviceJoined:       a.deviceJoined,
		OnDeviceLeft:         a.deviceLeft,
		OnStateRequested:     a.stateRequested,
		OnStateReceived:      a.stateReceived,
		OnMigrationRequested: a.migrationRequested,
	}
}

func (a *app) deviceJoined(e service.DeviceJoined) {
	a.logger.Info("[EVENT] Device joined", "model", e.ModelName, "device", e.Device.ID, "name", e.Device.Name)

	if a.cfg.AdoptState && e.Device.HoldsState(e.ModelName) && !a.hasLocalState(e.ModelName) {
		ctx, cancel := a.replyContext()
		defer cancel()
		if err := a.node.RequestState(ctx, e.ModelName, e.Device.ID); err != nil {
			a.logger.Warn("request state failed", "model", e.ModelName, "device", e.Device.ID, "error", err)
		}
	}
}

// syncMissingState requests state for every model without local state from
// a device known to hold it.
func (a *app) syncMissingState(ctx context.Context) {
	for _, m := range a.node.Models() {
		if len(m.State) > 0 {
			continue
		}
		devices, err := a.node.Devices(m.Name, true)
		if err != nil || len(devices) == 0 {
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, service.DefaultConfig().ReplyTimeout)
		err = a.node.RequestState(reqCtx, m.Name, devices[0].ID)
		cancel()
		if err != nil {
			a.logger.Warn("request state failed", "model", m.Name, "device", devices[0].ID, "error", err)
			continue
		}
		a.logger.Info("Requested missing state", "model", m.Name, "device", devices[0].ID)
	}
}

func (a *app) deviceLeft(e service.DeviceLeft) {
	a.logger.Info("[EVENT] Device left", "device", e.Device.ID, "name", e.Device.Name)
}

func (a *app) stateRequested(e service.StateRequested) {
	a.logger.Info("[EVENT] State requested", "model", e.ModelName, "device", e.Device.ID)

	if !a.cfg.AutoRespond {
		return
	}
	if !a.hasLocalState(e.ModelName) {
		a.logger.Debug("no local state to send", "model", e.ModelName)
		return
	}
	ctx, cancel := a.replyContext()
	defer cancel()
	if err := a.node.SendState(ctx, e.ModelName, e.Device.ID); err != nil {
		a.logger.Warn("send state failed", "model", e.ModelName, "device", e.Device.ID, "error", err)
	}
}

func (a *app) stateReceived(e service.StateReceived) {
	a.logger.Info("[EVENT] State received", "model", e.ModelName, "device", e.Device.ID,
		"valid", e.Valid, "size", len(e.State))

	if !a.cfg.AdoptState || !e.Valid || a.hasLocalState(e.ModelName) {
		return
	}
	if err := a.node.SetState(e.ModelName, e.State); err != nil {
		a.logger.Warn("adopt state failed", "model", e.ModelName, "error", err)
		return
	}
	if a.store != nil {
		if err := a.store.PutModel(a.cfg.Name, e.ModelName, e.State); err != nil {
			a.logger.Warn("save state failed", "file", a.store.Path(), "error", err)
		}
	}
	ctx, cancel := a.replyContext()
	defer cancel()
	if err := a.node.AnnounceHasState(ctx, e.ModelName, true); err != nil {
		a.logger.Warn("announce has-state failed", "model", e.ModelName, "error", err)
	}
}

func (a *app) migrationRequested(e service.MigrationRequested) {
	a.logger.Warn("[EVENT] Migration requested", "model", e.ModelName, "device", e.Device.ID)
}

func (a *app) hasLocalState(name string) bool {
	m, ok := a.node.Model(name)
	return ok && len(m.State) > 0
}

// replyContext bounds publications made from event handlers, which run on
// the node's dispatch goroutine.
func (a *app) replyContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), service.DefaultConfig().ReplyTimeout)
}

func (a *app) advertise() (*discovery.MDNSAdvertiser, error) {
	advConfig := discovery.DefaultAdvertiserConfig()
	advConfig.Interface = a.cfg.Interface

	models := a.node.Models()
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}

	adv := discovery.NewMDNSAdvertiser(advConfig)
	err := adv.AdvertiseNode(&discovery.NodeInfo{
		ID:     a.node.ID(),
		Name:   a.cfg.Name,
		Models: names,
		Broker: a.cfg.Broker,
	}, advertisedPort(a.cfg))
	if err != nil {
		return nil, err
	}
	return adv, nil
}

// advertisedPort returns the metrics port when metrics are served, and the
// MQTT default port otherwise.
func advertisedPort(cfg Config) int {
	if cfg.MetricsAddr != "" {
		if _, p, err := net.SplitHostPort(cfg.MetricsAddr); err == nil {
			if port, err := strconv.Atoi(p); err == nil && port > 0 {
				return port
			}
		}
	}
	return transport.DefaultPort
}

func discoverBroker(ctx context.Context, cfg Config, logger *slog.Logger) (string, error) {
	logger.Info("Browsing for MQTT broker", "timeout", cfg.DiscoverTimeout)

	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: cfg.Interface})
	svc, err := browser.FindBroker(ctx, cfg.DiscoverTimeout)
	if err != nil {
		return "", fmt.Errorf("broker discovery: %w", err)
	}
	logger.Info("Broker found", "instance", svc.InstanceName, "url", svc.URL())
	return svc.URL(), nil
}

func openProtocolLog(cfg Config, logger *slog.Logger) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeFn := func() {}

	if cfg.ProtocolLog != "" {
		fl, err := log.NewFileLoggerWithConfig(cfg.ProtocolLog, log.FileLoggerConfig{MaxSize: cfg.ProtocolLogMaxSize})
		if err != nil {
			return nil, closeFn, err
		}
		loggers = append(loggers, fl)
		closeFn = func() {
			if n := fl.Failed(); n > 0 {
				logger.Warn("protocol log events lost", "count", n, "file", fl.Path())
			}
			if err := fl.Close(); err != nil {
				logger.Warn("close protocol log", "error", err)
			}
		}
	}
	if cfg.LogLevel == "debug" {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	switch len(loggers) {
	case 0:
		return nil, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return log.NewMultiLogger(loggers...), closeFn, nil
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
