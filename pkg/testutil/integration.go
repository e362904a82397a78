package testutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/forcebridge/pkg/salesforce/sftest"
)

// NodeTestSuite provides a fresh fake org, context, temp directory and
// observed logger for every test in a suite.
type NodeTestSuite struct {
	suite.Suite

	Org  *sftest.Org
	Log  *zap.Logger
	Logs *observer.ObservedLogs

	ctx     context.Context
	cancel  context.CancelFunc
	tempDir string
}

// SetupTest runs before each test in the suite
func (s *NodeTestSuite) SetupTest() {
	s.Org = sftest.New(s.T())
	s.Log, s.Logs = ObservedLogger(zapcore.DebugLevel)
	s.ctx, s.cancel = context.WithCancel(TestContext(s.T()))
	s.tempDir = s.T().TempDir()
}

// TearDownTest runs after each test in the suite
func (s *NodeTestSuite) TearDownTest() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Context returns the test context
func (s *NodeTestSuite) Context() context.Context {
	return s.ctx
}

// Cancel cancels the test context
func (s *NodeTestSuite) Cancel() {
	s.cancel()
}

// TempDir returns the temporary directory path
func (s *NodeTestSuite) TempDir() string {
	return s.tempDir
}

// CreateTempFile writes content to a file in the temp directory.
func (s *NodeTestSuite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.WriteFile(path, content, 0o600))
	return path
}

// RequireNoDataCalls fails unless the org only ever saw login traffic.
func (s *NodeTestSuite) RequireNoDataCalls() {
	for _, op := range s.Org.Ops() {
		if op != sftest.OpLogin && op != sftest.OpToken {
			s.FailNowf("unexpected call", "org received %s after authentication failed; calls: %v", op, s.Org.Ops())
		}
	}
}

// LogMessages returns the messages of the observed entries.
func (s *NodeTestSuite) LogMessages() []string {
	entries := s.Logs.All()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
