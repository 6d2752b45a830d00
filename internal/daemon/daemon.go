// Package daemon implements the daemon lifecycle manager.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"daqflow.xyz/dfo/internal/command"
	"daqflow.xyz/dfo/internal/config"
	"daqflow.xyz/dfo/internal/core"
	"daqflow.xyz/dfo/internal/dispatcher"
	logpkg "daqflow.xyz/dfo/internal/log"
	"daqflow.xyz/dfo/internal/metrics"
	"daqflow.xyz/dfo/internal/transport"
	"daqflow.xyz/dfo/internal/trbsim"
)

// connectionDepth is the buffer depth of the in-memory connections.
const connectionDepth = 1000

// Daemon manages the orchestrator daemon process lifecycle: configuration,
// logging, the dispatcher and its connections, the simulated endpoints,
// the metrics server and the control socket.
type Daemon struct {
	config     *config.GlobalConfig
	configPath string
	socketPath string
	pidFile    string

	disp *dispatcher.Dispatcher

	decisionConn *transport.Connection[core.TriggerDecision]
	tokenConn    *transport.Connection[core.TriggerDecisionToken]
	inhibitConn  *transport.Connection[core.TriggerInhibit]
	trbConns     map[string]*transport.Connection[core.TriggerDecision]

	sims []*trbsim.FakeTRB

	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	metricsServer *metrics.Server

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	sigChan      chan os.Signal
}

// New creates a new Daemon instance from the configuration file. Socket and
// PID file paths from flags override the configured ones when non-empty.
func New(configPath, socketPath, pidFile string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if socketPath == "" {
		socketPath = cfg.Control.Socket
	}
	if pidFile == "" {
		pidFile = cfg.Control.PIDFile
	}

	d := &Daemon{
		config:       cfg,
		configPath:   configPath,
		socketPath:   socketPath,
		pidFile:      pidFile,
		shutdownChan: make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Start initializes and starts all daemon components.
func (d *Daemon) Start() error {
	d.initLogging()

	slog.Info("starting dfo daemon",
		"config", d.configPath,
		"socket", d.socketPath,
		"simulation", d.config.Simulation.Enabled)

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	if d.config.Metrics.Enabled {
		d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
		if err := d.metricsServer.Start(d.ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := d.buildDispatcher(); err != nil {
		return err
	}

	go d.metricsCollectorLoop()

	if d.config.Simulation.Enabled {
		if err := d.startSimulation(); err != nil {
			return err
		}
	}

	d.cmdHandler = command.NewCommandHandler(d.disp, d.applyConfiguration)
	d.cmdHandler.SetDecisionSender(d.decisionConn)
	d.cmdHandler.SetShutdownFunc(func() {
		slog.Info("shutdown triggered via daemon_shutdown command")
		close(d.shutdownChan)
	})

	d.udsServer = command.NewUDSServer(d.socketPath, d.cmdHandler)
	if err := d.udsServer.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start uds server: %w", err)
	}

	slog.Info("daemon started successfully")
	return nil
}

// buildDispatcher creates the connections and the configured dispatcher.
func (d *Daemon) buildDispatcher() error {
	conns := d.config.Connections

	d.decisionConn = transport.NewConnection[core.TriggerDecision](conns.DecisionInput, connectionDepth)
	d.tokenConn = transport.NewConnection[core.TriggerDecisionToken](conns.TokenInput, connectionDepth)
	d.inhibitConn = transport.NewConnection[core.TriggerInhibit](conns.InhibitOutput, connectionDepth)

	d.trbConns = make(map[string]*transport.Connection[core.TriggerDecision], len(conns.TRBOutputs))
	trbSenders := make(map[string]transport.Sender[core.TriggerDecision], len(conns.TRBOutputs))
	for _, name := range conns.TRBOutputs {
		c := transport.NewConnection[core.TriggerDecision](name, connectionDepth)
		d.trbConns[name] = c
		trbSenders[name] = c
	}

	d.disp = dispatcher.New("dfo")
	if err := d.disp.Init(dispatcher.Connections{
		DecisionReceiver: d.decisionConn,
		TokenReceiver:    d.tokenConn,
		InhibitSender:    d.inhibitConn,
		TRBSenders:       trbSenders,
	}); err != nil {
		return err
	}

	return d.applyConfiguration()
}

// applyConfiguration maps the resolved configuration onto the dispatcher.
// Also backs the conf control command.
func (d *Daemon) applyConfiguration() error {
	dc := d.config.Dispatcher
	return d.disp.Configure(dispatcher.Config{
		QueueTimeout:  dc.QueueTimeout(),
		StopTimeout:   dc.StopTimeout(),
		BusyThreshold: dc.BusyThreshold,
		FreeThreshold: dc.FreeThreshold,
		TDSendRetries: dc.TDSendRetries,
	})
}

// startSimulation creates one fake TRB per configured decision output and
// consumes the inhibit stream in place of the upstream trigger.
func (d *Daemon) startSimulation() error {
	delay := d.config.Simulation.ResponseDelayDuration()
	for _, name := range d.config.Connections.TRBOutputs {
		sim, err := trbsim.New(trbsim.Config{
			ConnectionName: name,
			ResponseDelay:  delay,
			QueueTimeout:   d.config.Dispatcher.QueueTimeout(),
		}, d.trbConns[name], d.tokenConn)
		if err != nil {
			return err
		}
		if err := sim.Start(); err != nil {
			return err
		}
		d.sims = append(d.sims, sim)
	}

	d.inhibitConn.AddCallback(func(inhibit core.TriggerInhibit) {
		slog.Info("inhibit state changed", "busy", inhibit.Busy, "run", inhibit.RunNumber)
	})

	slog.Info("simulation started", "endpoints", len(d.sims))
	return nil
}

// Stop performs graceful shutdown of all daemon components.
func (d *Daemon) Stop() {
	slog.Info("initiating graceful shutdown")

	if d.disp != nil && d.disp.State() == dispatcher.StateRunning {
		if err := d.disp.DrainStop(); err != nil {
			slog.Error("error draining dispatcher", "error", err)
		}
	}

	for _, sim := range d.sims {
		sim.Stop()
	}
	d.sims = nil

	if d.udsServer != nil {
		d.udsServer.Stop()
	}

	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			slog.Error("error stopping metrics server", "error", err)
		}
	}

	d.cancel()

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		slog.Error("error removing PID file", "error", err)
	}

	slog.Info("daemon stopped gracefully")
}

// Run runs the daemon main loop, blocking until shutdown is triggered by an
// OS signal or the daemon_shutdown command.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT)

	slog.Info("daemon running, waiting for signals or commands")

	select {
	case sig := <-d.sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
	case <-d.shutdownChan:
		slog.Info("shutdown triggered by command")
	case <-d.ctx.Done():
		slog.Info("context cancelled", "error", d.ctx.Err())
	}

	d.Stop()
	return nil
}

// metricsCollectorLoop periodically publishes the dispatcher's opmon
// counters into the Prometheus vectors.
func (d *Daemon) metricsCollectorLoop() {
	interval := d.config.Metrics.CollectIntervalDuration()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.disp.PublishMetrics()
		}
	}
}

// DecisionSender exposes the decision input connection so an embedding
// process (or the inject control command) can feed decisions in.
func (d *Daemon) DecisionSender() transport.Sender[core.TriggerDecision] {
	return d.decisionConn
}

func (d *Daemon) initLogging() {
	lc := d.config.Log
	cfg := &logpkg.Config{Level: lc.Level, Format: lc.Format}
	if lc.Outputs.File.Enabled {
		cfg.File = &logpkg.FileOptions{
			Path:       lc.Outputs.File.Path,
			MaxSizeMB:  lc.Outputs.File.Rotation.MaxSizeMB,
			MaxAgeDays: lc.Outputs.File.Rotation.MaxAgeDays,
			MaxBackups: lc.Outputs.File.Rotation.MaxBackups,
			Compress:   lc.Outputs.File.Rotation.Compress,
		}
	}
	logpkg.Init(cfg)
}

func (d *Daemon) writePIDFile() error {
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}
