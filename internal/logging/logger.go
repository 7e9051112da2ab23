// Package logging builds the process-wide structured logger.
//
// Grounded on the teacher's practice of threading explicit collaborators
// through constructors (NewOrderService, NewHTTPRPCClient); here the
// *zap.Logger plays that role instead of a hand-rolled audit logger.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger. dev=true selects a human-readable console
// encoder for local development; dev=false selects JSON output suitable
// for log aggregation in production.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// FromEnv selects dev vs. production encoding based on COORDINATOR_ENV.
func FromEnv() (*zap.Logger, error) {
	return New(os.Getenv("COORDINATOR_ENV") == "dev")
}
