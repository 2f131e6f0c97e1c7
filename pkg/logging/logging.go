// Package logging builds the process logger. Packages only see logr.Logger;
// zap is the sink.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/klog/v2"
)

// Options configures the process logger.
type Options struct {
	// Verbose enables V(1) debug output and the human readable encoder.
	Verbose bool
	// JSON forces the JSON encoder.
	JSON bool
}

// New builds a zap-backed logr.Logger and routes client-go's klog output
// through it. The returned function flushes buffered entries.
func New(o Options) (logr.Logger, func(), error) {
	var cfg zap.Config
	if o.JSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}

	// Logs go to stderr so that stdout only carries the report.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if o.Verbose {
		// logr V(1) maps to zap level -1.
		cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-1))
	}

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, errors.Wrap(err, "can't build logger")
	}

	log := zapr.NewLogger(zl)
	klog.SetLogger(log.WithName("client-go"))

	return log, func() { _ = zl.Sync() }, nil
}
