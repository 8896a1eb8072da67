package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/2beens/fitcoach/internal"
	"github.com/2beens/fitcoach/internal/config"
	"github.com/2beens/fitcoach/internal/logging"
	"github.com/2beens/fitcoach/pkg"

	log "github.com/sirupsen/logrus"
)

// secrets are read from the environment, never from config.toml
type secrets struct {
	sentryDSN        string
	redisPassword    string
	postgresPassword string
	honeycombEnabled bool
}

func secretsFromEnv() secrets {
	s := secrets{
		sentryDSN:        os.Getenv("SENTRY_DSN"),
		redisPassword:    os.Getenv("FITCOACH_REDIS_PASS"),
		postgresPassword: os.Getenv("FITCOACH_POSTGRES_PASS"), // empty with trust auth
		honeycombEnabled: os.Getenv("HONEYCOMB_ENABLED") == "true",
	}

	if s.redisPassword == "" {
		log.Errorf("redis password not set. use FITCOACH_REDIS_PASS")
	}
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}
	if !s.honeycombEnabled {
		log.Debugln("honeycomb tracing disabled")
	} else if os.Getenv("HONEYCOMB_API_KEY") == "" {
		log.Warnln("HONEYCOMB_API_KEY env var not set")
	}
	return s
}

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	if err := run(*env, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fitcoach: %s\n", err)
		os.Exit(1)
	}
}

func run(env, configPath string) error {
	if exists, err := pkg.PathExists(configPath, false); err != nil || !exists {
		return fmt.Errorf("config file [%s] not found: %v", configPath, err)
	}

	cfg, err := config.Load(env, configPath)
	if err != nil {
		return err
	}

	secrets := secretsFromEnv()
	closeLogs, err := logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        secrets.sentryDSN,
		SentryServerName: "fitcoach-service",
	})
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	defer closeLogs()

	log.Warnf("---->> running in [%s] environment", env)
	log.Debugf("using port: %d, logs path: [%s]", cfg.Port, cfg.LogsPath)
	log.Debugf(
		"analysis: tick %s, acquire timeout %s, max sessions %d, native frames %t",
		cfg.Analysis.TickPeriod, cfg.Analysis.AcquireTimeout, cfg.Analysis.MaxSessions, cfg.Analysis.NativeFrames,
	)

	versionInfo := versionInfo()
	log.Tracef("running version: %s", versionInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			VersionInfo:             versionInfo,
			RedisPassword:           secrets.redisPassword,
			PostgresPassword:        secrets.postgresPassword,
			HoneycombTracingEnabled: secrets.honeycombEnabled,
		},
	)
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	<-ctx.Done()
	log.Warnf("shutdown signal received, stopping sessions and servers ...")
	return server.GracefulShutdown()
}

// versionInfo prefers the VCS revision stamped into the binary, then the
// git HEAD of the working dir.
func versionInfo() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return setting.Value
			}
		}
	}

	stdout, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
		return "unknown"
	}
	return strings.TrimSpace(pkg.BytesToString(stdout))
}
