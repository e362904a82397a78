// Package testutil provides testing utilities for forcebridge
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce/sftest"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

// ObservedLogger returns a logger whose entries at level and above can be
// inspected through the returned observer.
func ObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// TestContext creates a context with a 30-second timeout that is cancelled
// when the test completes.
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NodeConfig returns a valid configuration of the given kind pointing at
// org with the org's credentials.
func NodeConfig(kind string, org *sftest.Org) *config.BaseConfig {
	cfg := config.NewBaseConfig("test-"+kind, kind)
	cfg.Credentials.Username = sftest.Username
	cfg.Credentials.Password = sftest.Password
	cfg.Credentials.SecurityToken = sftest.SecurityToken
	cfg.Credentials.Domain = org.URL()
	cfg.Salesforce.APIVersion = sftest.APIVersion
	cfg.Reliability.RetryDelay = time.Millisecond
	cfg.Reliability.CircuitBreaker = false
	cfg.Timeouts.Request = 5 * time.Second
	return cfg
}
