// Package cluster provides IStormClusterState (spec §6): the executor's
// collaborator for reporting task errors, keyed by
// (storm_id, component_id, task_id, host, port). Per spec §1 the real
// cluster state store is an external collaborator out of scope for this
// core; this package only defines the interface boundary plus a
// rate-limited slog-backed implementation for standalone/demo use.
package cluster

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"firestige.xyz/streamcore/internal/stream"
)

// ErrorKey identifies the task an error is reported against.
type ErrorKey struct {
	StormID     string
	ComponentID stream.ComponentID
	TaskID      stream.TaskID
	Host        string
	Port        int
}

// IStormClusterState is the executor's collaborator for error reporting and
// lifecycle teardown. Real implementations talk to the cluster coordinator
// (ZooKeeper-equivalent); that wiring is out of scope here.
type IStormClusterState interface {
	// ReportError records a non-fatal error for key, subject to
	// implementation-defined rate limiting (spec §7).
	ReportError(ctx context.Context, key ErrorKey, err error) error
	// ReportErrorAndDie records a fatal error and then invokes die, which the
	// caller supplies as its suicide_fn (spec §7 escalation).
	ReportErrorAndDie(ctx context.Context, key ErrorKey, err error, die func()) error
	// Close releases any held resources.
	Close() error
}

// NoopClusterState discards every report. Used in tests and the demo CLI
// where no real cluster coordinator is present.
type NoopClusterState struct{}

func (NoopClusterState) ReportError(context.Context, ErrorKey, error) error { return nil }

func (NoopClusterState) ReportErrorAndDie(_ context.Context, _ ErrorKey, _ error, die func()) error {
	if die != nil {
		die()
	}
	return nil
}

func (NoopClusterState) Close() error { return nil }

// LogClusterState reports errors through slog, rate-limited per ErrorKey —
// spec §7: "caught, reported through ReportError to cluster state
// (rate-limited by config)". Uses log/slog with key-value attrs throughout.
type LogClusterState struct {
	logger   *slog.Logger
	minGap   time.Duration

	mu   sync.Mutex
	last map[ErrorKey]time.Time
}

// NewLogClusterState builds a LogClusterState that suppresses repeat reports
// for the same key within minGap.
func NewLogClusterState(logger *slog.Logger, minGap time.Duration) *LogClusterState {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogClusterState{
		logger: logger,
		minGap: minGap,
		last:   make(map[ErrorKey]time.Time),
	}
}

func (s *LogClusterState) allow(key ErrorKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if last, ok := s.last[key]; ok && now.Sub(last) < s.minGap {
		return false
	}
	s.last[key] = now
	return true
}

func (s *LogClusterState) ReportError(_ context.Context, key ErrorKey, err error) error {
	if !s.allow(key) {
		return nil
	}
	s.logger.Warn("task error reported",
		"storm_id", key.StormID,
		"component_id", key.ComponentID,
		"task_id", key.TaskID,
		"host", key.Host,
		"port", key.Port,
		"error", err,
	)
	return nil
}

func (s *LogClusterState) ReportErrorAndDie(ctx context.Context, key ErrorKey, err error, die func()) error {
	s.logger.Error("fatal task error, invoking suicide_fn",
		"storm_id", key.StormID,
		"component_id", key.ComponentID,
		"task_id", key.TaskID,
		"host", key.Host,
		"port", key.Port,
		"error", err,
	)
	if die != nil {
		die()
	}
	return nil
}

func (s *LogClusterState) Close() error { return nil }

// ResolveHost returns the first non-loopback IPv4 address of the local host,
// or "" if none can be determined. Per spec §7: "Host lookup specifically
// falls back to empty string rather than failing" — construction-time host
// resolution must never itself be the cause of a failed executor start.
func ResolveHost() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
