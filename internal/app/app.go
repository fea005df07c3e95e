package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stone-age-io/nbtoff/internal/config"
	"github.com/stone-age-io/nbtoff/internal/dispatch"
	"github.com/stone-age-io/nbtoff/internal/netbios"
	"github.com/stone-age-io/nbtoff/internal/report"
	"github.com/stone-age-io/nbtoff/internal/resolver"
	"github.com/stone-age-io/nbtoff/internal/scheduler"
	"github.com/stone-age-io/nbtoff/internal/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// App wires the enforcement pipeline together: resolve targets, dispatch
// the action, report the outcome.
type App struct {
	config    *config.Config
	logger    *zap.Logger
	resolver  *resolver.Resolver
	publisher *report.Publisher
	localHost string
	version   string
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates an app instance from the config at configPath
func New(configPath string, version string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Starting nbtoff",
		zap.String("version", version))

	info, err := host.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to read local host info: %w", err)
	}

	res := &resolver.Resolver{
		Domain: cfg.Discovery.Domain,
		Logger: logger,
	}
	if cfg.Discovery.URL != "" {
		res.Dir = resolver.NewLDAPDirectory(cfg.Discovery, logger)
	}

	var publisher *report.Publisher
	if cfg.Report.NATS.Enabled {
		publisher, err = report.NewPublisher(cfg.Report.NATS, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect report publisher: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		config:    cfg,
		logger:    logger,
		resolver:  res,
		publisher: publisher,
		localHost: info.Hostname,
		version:   version,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// EnforceOnce runs the whole pipeline once: resolve hosts, dispatch the
// action to each, summarize. Only resolution and transport setup are fatal;
// per-host failures land in the report.
func (a *App) EnforceOnce(ctx context.Context, explicit []string) error {
	hosts, err := a.resolver.Resolve(ctx, explicit)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		a.logger.Info("No target hosts, nothing to do")
		return nil
	}

	d := &dispatch.Dispatcher{
		Local:         a.runLocalAction,
		LocalHost:     a.localHost,
		MaxConcurrent: a.config.Dispatch.MaxConcurrent,
		Logger:        a.logger,
	}

	if remoteNeeded(hosts, a.localHost) {
		ssh, err := transport.NewSSH(a.config.SSH, a.logger)
		if err != nil {
			return fmt.Errorf("remote dispatch requires a working SSH transport: %w", err)
		}
		d.Transport = ssh
	}

	results := d.Run(ctx, hosts)

	rep := report.Summarize(results)
	if err := rep.Write(os.Stdout); err != nil {
		a.logger.Error("Failed to render report", zap.Error(err))
	}

	a.logger.Info("Enforcement run complete",
		zap.Int("hosts", rep.Hosts),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
		zap.Int("interfaces_changed", rep.InterfacesChanged))

	if a.publisher != nil {
		if err := a.publisher.Publish(rep); err != nil {
			a.logger.Error("Failed to publish report", zap.Error(err))
		}
	}

	return nil
}

// RunLocal executes the enforcement action against this machine only. With
// jsonOut the Result is printed as JSON on stdout and the process succeeds
// regardless of the action outcome, so the remote leg of the transport
// always gets a decodable payload back.
func (a *App) RunLocal(ctx context.Context, jsonOut bool) error {
	res := a.runLocalAction(ctx)

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(res)
	}

	rep := report.Summarize([]netbios.Result{res})
	if err := rep.Write(os.Stdout); err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("enforcement failed: %s", res.Err)
	}
	return nil
}

// RunScheduled blocks running the pipeline on the configured interval until
// a shutdown signal arrives.
func (a *App) RunScheduled(explicit []string) error {
	sched, err := scheduler.New(a.logger, a.config.Schedule.Interval, a.ctx, func(ctx context.Context) {
		if err := a.EnforceOnce(ctx, explicit); err != nil {
			a.logger.Error("Scheduled enforcement run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.Start()

	a.logger.Info("Running on schedule",
		zap.Duration("interval", a.config.Schedule.Interval))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		a.logger.Info("Received shutdown signal")
	case <-a.ctx.Done():
		a.logger.Info("Context cancelled")
	}

	if err := sched.Shutdown(); err != nil {
		a.logger.Error("Error shutting down scheduler", zap.Error(err))
	}
	return a.Shutdown()
}

// ScheduleEnabled reports whether the config asks for periodic runs
func (a *App) ScheduleEnabled() bool {
	return a.config.Schedule.Enabled
}

// Hosts returns the explicit host list from config
func (a *App) Hosts() []string {
	return a.config.Hosts
}

// Context returns the app's root context
func (a *App) Context() context.Context {
	return a.ctx
}

// Shutdown releases connections and flushes the logger
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down")
	a.cancel()

	if a.publisher != nil {
		a.publisher.Close()
	}

	a.logger.Sync()
	return nil
}

// runLocalAction builds and executes the in-process action for this host
func (a *App) runLocalAction(ctx context.Context) netbios.Result {
	action, closeFn, err := netbios.NewLocalAction(a.localHost, a.logger)
	if err != nil {
		return netbios.Result{Host: a.localHost, Err: err.Error()}
	}
	defer closeFn()

	return action.Execute(ctx)
}

// remoteNeeded reports whether any host requires the remote channel
func remoteNeeded(hosts []string, localHost string) bool {
	return !(len(hosts) == 1 && strings.EqualFold(hosts[0], localHost))
}

// initLogger creates and configures the logger with log rotation
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     28, // days
		Compress:   true,
	}

	// The report goes to stdout; the console log leg goes to stderr so
	// -json output stays parseable.
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, zapcore.AddSync(fileWriter), level),
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return logger, nil
}
