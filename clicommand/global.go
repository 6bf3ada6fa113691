package clicommand

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/buildkite/procctl/cliconfig"
	"github.com/buildkite/procctl/internal/tracing"
	"github.com/buildkite/procctl/logger"
	"github.com/buildkite/procctl/metrics"
	"github.com/oleiade/reflections"
	"github.com/urfave/cli"
)

var ConfigFlag = cli.StringFlag{
	Name:   "config",
	Value:  "",
	Usage:  "Path to a configuration file",
	EnvVar: "PROCCTL_CONFIG",
}

var DebugFlag = cli.BoolFlag{
	Name:   "debug",
	Usage:  "Enable debug mode. Synonym for ′--log-level debug′. Takes precedence over ′--log-level′",
	EnvVar: "PROCCTL_DEBUG",
}

var LogLevelFlag = cli.StringFlag{
	Name:   "log-level",
	Value:  "notice",
	Usage:  "Set the log level for procctl. Possible values are: \"debug\", \"info\", \"notice\", \"warn\", \"error\", \"fatal\"",
	EnvVar: "PROCCTL_LOG_LEVEL",
}

var LogFormatFlag = cli.StringFlag{
	Name:   "log-format",
	Value:  "text",
	Usage:  "The format to use for the logger output, either \"text\" or \"json\"",
	EnvVar: "PROCCTL_LOG_FORMAT",
}

var NoColorFlag = cli.BoolFlag{
	Name:   "no-color",
	Usage:  "Don't show colors in logging",
	EnvVar: "PROCCTL_NO_COLOR",
}

var ProfileFlag = cli.StringFlag{
	Name:   "profile",
	Usage:  "Enable a profiling mode, either cpu, memory, mutex, block, thread or trace",
	EnvVar: "PROCCTL_PROFILE",
}

var MetricsAddrFlag = cli.StringFlag{
	Name:   "metrics-addr",
	Usage:  "Serve process status on /status and Prometheus metrics on /metrics at this address, e.g. ′localhost:9090′",
	EnvVar: "PROCCTL_METRICS_ADDR",
}

var MetricsDatadogFlag = cli.BoolFlag{
	Name:   "metrics-datadog",
	Usage:  "Send process metrics to DogStatsD",
	EnvVar: "PROCCTL_METRICS_DATADOG",
}

var MetricsDatadogHostFlag = cli.StringFlag{
	Name:   "metrics-datadog-host",
	Value:  "127.0.0.1:8125",
	Usage:  "The dogstatsd instance to send metrics to using udp",
	EnvVar: "PROCCTL_METRICS_DATADOG_HOST",
}

var TracingBackendFlag = cli.StringFlag{
	Name:   "tracing-backend",
	Value:  tracing.BackendNone,
	Usage:  "Enable tracing of process waits by setting this to ′opentelemetry′",
	EnvVar: "PROCCTL_TRACING_BACKEND",
}

var TracingServiceNameFlag = cli.StringFlag{
	Name:   "tracing-service-name",
	Value:  "procctl",
	Usage:  "Service name to use when reporting traces",
	EnvVar: "PROCCTL_TRACING_SERVICE_NAME",
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		NoColorFlag,
		DebugFlag,
		LogLevelFlag,
		LogFormatFlag,
		ProfileFlag,
		MetricsAddrFlag,
		MetricsDatadogFlag,
		MetricsDatadogHostFlag,
		TracingBackendFlag,
		TracingServiceNameFlag,
	}
}

// DefaultConfigFilePaths are checked in order when --config isn't given.
func DefaultConfigFilePaths() (paths []string) {
	if runtime.GOOS == "windows" {
		paths = []string{
			"$USERPROFILE\\AppData\\Local\\procctl\\procctl.cfg",
			"C:\\procctl\\procctl.cfg",
		}
	} else {
		paths = []string{
			"$HOME/.procctl/procctl.cfg",
			"/usr/local/etc/procctl/procctl.cfg",
			"/etc/procctl/procctl.cfg",
		}
	}

	// A procctl.cfg next to the binary wins over everything else.
	pathToBinary, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err == nil {
		paths = append([]string{filepath.Join(pathToBinary, "procctl.cfg")}, paths...)
	}

	return paths
}

// CreateLogger builds the logger described by the LogFormat, NoColor,
// Debug and LogLevel fields of cfg, where present.
func CreateLogger(cfg any) logger.Logger {
	logFormat := "text"
	if v, err := reflections.GetField(cfg, "LogFormat"); err == nil {
		if s, ok := v.(string); ok && s != "" {
			logFormat = s
		}
	}

	var printer logger.Printer
	switch logFormat {
	case "text":
		p := logger.NewTextPrinter(os.Stderr)
		if noColor, err := reflections.GetField(cfg, "NoColor"); err == nil && noColor == true {
			p.Colors = false
		}
		printer = p
	case "json":
		printer = logger.NewJSONPrinter(os.Stderr)
	default:
		fmt.Fprintf(os.Stderr, "Unknown log-format of %q, try text or json\n", logFormat)
		os.Exit(1)
	}

	l := logger.NewConsoleLogger(printer, os.Exit)

	if v, err := reflections.GetField(cfg, "LogLevel"); err == nil {
		if s, ok := v.(string); ok && s != "" {
			level, err := logger.LevelFromString(s)
			if err != nil {
				l.Fatal("%v", err)
			}
			l.SetLevel(level)
		}
	}

	// --debug trumps --log-level
	if debug, err := reflections.GetField(cfg, "Debug"); err == nil && debug == true {
		l.SetLevel(logger.DEBUG)
	}

	return l
}

// HandleGlobalFlags starts the profiler, tracing and metrics collection
// that cfg asks for. The returned func stops them again.
func HandleGlobalFlags(ctx context.Context, l logger.Logger, cfg any) (*metrics.Collector, func()) {
	var stops []func()
	done := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if mode := stringField(cfg, "Profile"); mode != "" {
		stops = append(stops, Profile(l, mode))
	}

	backend := stringField(cfg, "TracingBackend")
	if _, ok := tracing.ValidBackends[backend]; !ok {
		l.Fatal("The given tracing backend %q is not supported. Valid backends are: %q", backend, tracing.BackendOpenTelemetry)
	}
	stopTracing, err := tracing.Start(ctx, backend, stringField(cfg, "TracingServiceName"))
	if err != nil {
		l.Error("Tracing is disabled: %v", err)
	} else {
		stops = append(stops, func() { stopTracing() })
	}

	datadog, _ := reflections.GetField(cfg, "MetricsDatadog")
	collector := metrics.NewCollector(l, metrics.CollectorConfig{
		Datadog:     datadog == true,
		DatadogHost: stringField(cfg, "MetricsDatadogHost"),
	})
	if err := collector.Start(); err != nil {
		l.Error("Metrics collection is disabled: %v", err)
	} else {
		stops = append(stops, func() {
			if err := collector.Stop(); err != nil {
				l.Warn("Stopping metrics collection: %v", err)
			}
		})
	}

	return collector, done
}

func stringField(cfg any, name string) string {
	v, err := reflections.GetField(cfg, name)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// setupLoggerAndConfig loads a T from the command line and config file,
// builds the logger for it and handles the global flags.
func setupLoggerAndConfig[T any](ctx context.Context, c *cli.Context) (
	_ context.Context,
	cfg T,
	l logger.Logger,
	collector *metrics.Collector,
	done func(),
) {
	loader := cliconfig.Loader{
		CLI:                    c,
		Config:                 &cfg,
		DefaultConfigFilePaths: DefaultConfigFilePaths(),
	}
	warnings, err := loader.Load()
	if err != nil {
		fmt.Fprintf(c.App.ErrWriter, "%s\n", err)
		os.Exit(1)
	}

	l = CreateLogger(&cfg)

	// Now that we have a logger, log out the warnings that loading config generated
	for _, warning := range warnings {
		l.Warn("%s", warning)
	}

	collector, done = HandleGlobalFlags(ctx, l, &cfg)
	return ctx, cfg, l, collector, done
}
