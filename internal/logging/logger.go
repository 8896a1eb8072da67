package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/2beens/fitcoach/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileMaxSizeMB  = 50
	logFileMaxBackups = 30
	logFileMaxAgeDays = 90
)

type LoggerSetupParams struct {
	// LogFileName is the rotated log file, without or with the .log suffix.
	// Empty logs to stdout only.
	LogFileName      string
	LogToStdout      bool
	LogLevel         string
	LogFormatJSON    bool
	Environment      string
	SentryEnabled    bool
	SentryDSN        string
	SentryServerName string
}

// Setup configures the global logrus logger and returns a func closing
// the log file.
func Setup(params LoggerSetupParams) (func(), error) {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetLevel(GetLevel(params.LogLevel))
	logrus.AddHook(newFieldsHook(logrus.Fields{"env": params.Environment}))

	if params.SentryEnabled {
		setupSentry(params)
	}

	if params.LogFileName == "" {
		logrus.SetOutput(os.Stdout)
		logrus.Debugln("writing logs only to STDOUT")
		return func() {}, nil
	}

	fileName := params.LogFileName
	if !strings.HasSuffix(fileName, ".log") {
		fileName += ".log"
	}
	if err := ensureDir(filepath.Dir(fileName)); err != nil {
		return nil, err
	}

	fileLogger := &lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		MaxAge:     logFileMaxAgeDays,
		LocalTime:  false, // UTC file timestamps
		Compress:   true,
	}

	var out io.Writer = fileLogger
	if params.LogToStdout {
		out = pkg.NewCombinedWriter(os.Stdout, fileLogger)
	}
	logrus.SetOutput(out)
	logrus.Debugf("writing logs to [%s], stdout: %t", fileName, params.LogToStdout)

	return func() {
		logrus.SetOutput(os.Stdout)
		if err := fileLogger.Close(); err != nil {
			logrus.Errorf("close log file: %s", err)
		}
	}, nil
}

func setupSentry(params LoggerSetupParams) {
	err := sentry.Init(sentry.ClientOptions{
		Environment:      params.Environment,
		Dsn:              params.SentryDSN,
		TracesSampleRate: 1.0,
		ServerName:       params.SentryServerName,
	})
	if err != nil {
		logrus.Errorf("sentry.Init: %s", err)
		return
	}

	logrus.AddHook(NewSentryHook([]logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	}))
	logrus.Infoln("sentry set up")
}

func ensureDir(dir string) error {
	exists, err := pkg.PathExists(dir, true)
	if err != nil {
		return fmt.Errorf("stat logs dir: %w", err)
	}
	if exists {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	return nil
}

// GetLevel parses level, falling back to trace for unknown values.
func GetLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.TraceLevel
	}
	return parsed
}

// fieldsHook adds the same fields to every entry, unless already set.
type fieldsHook struct {
	fields logrus.Fields
}

func newFieldsHook(fields logrus.Fields) *fieldsHook {
	clean := make(logrus.Fields, len(fields))
	for k, v := range fields {
		if v != "" {
			clean[k] = v
		}
	}
	return &fieldsHook{fields: clean}
}

func (h *fieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}
