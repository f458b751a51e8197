// Package config handles topology-wide and per-component configuration as a
// two-layer split: global viper-loaded config plus a per-component JSON
// overlay. The two layers are the topology's global options and a
// component's declared overrides, normalized per spec §4.10.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Recognized topology option keys (spec §6).
const (
	KeyDebug                   = "topology.debug"
	KeyMaxSpoutPending         = "topology.max.spout.pending"
	KeyMaxTaskParallelism      = "topology.max.task.parallelism"
	KeyTransactionalID         = "topology.transactional.id"
	KeyTickTupleFreqSecs       = "topology.tick.tuple.freq.secs"
	KeySleepSpoutWaitStrategy  = "topology.sleep.spout.wait.strategy.time.ms"
	KeySpoutWaitStrategy       = "topology.spout.wait.strategy"
	KeyWindowLengthCount       = "topology.window.length.count"
	KeyWindowLengthDurationMs  = "topology.window.length.duration.ms"
	KeyWindowSlideIntervalMs   = "topology.window.slide.interval.duration.ms"
	KeyTupleTimestampField     = "topology.bolts.tuple.timestamp.field.name"
	KeyTupleTimestampMaxLagMs  = "topology.bolts.tuple.timestamp.max.lag.ms"
	KeyMessageIDField          = "topology.message.id.field.name"
	KeyStateProvider           = "topology.state.provider"
	KeyStateProviderConfig     = "topology.state.provider.config"
	KeyLateTupleStream         = "topology.bolts.late.tuple.stream"

	// Non-overridable: govern this core, never allowed in a component overlay.
	KeyExecutorSendBufferSize   = "topology.executor.send.buffer.size"
	KeyDisruptorWaitTimeoutMs   = "topology.disruptor.wait.timeout.millis"
	KeyDisruptorBatchSize       = "topology.disruptor.batch.size"
	KeyDisruptorBatchTimeoutMs  = "topology.disruptor.batch.timeout.millis"
	KeyBackpressureEnable       = "topology.backpressure.enable"
	KeyBackpressureHighWM       = "backpressure.disruptor.high.watermark"
	KeyBackpressureLowWM        = "backpressure.disruptor.low.watermark"
	KeyEnableMessageTimeouts    = "topology.enable.message.timeouts"
)

// overridableKeys is the component-overridable allow-list from spec §3: every
// other topology key is worker-global and must pass through normalization
// unchanged regardless of what a component declares.
var overridableKeys = map[string]bool{
	KeyDebug:                  true,
	KeyMaxSpoutPending:        true,
	KeyMaxTaskParallelism:     true,
	KeyTransactionalID:        true,
	KeyTickTupleFreqSecs:      true,
	KeySleepSpoutWaitStrategy: true,
	KeySpoutWaitStrategy:      true,
	KeyWindowLengthCount:      true,
	KeyWindowLengthDurationMs: true,
	KeyWindowSlideIntervalMs:  true,
	KeyTupleTimestampField:    true,
	KeyTupleTimestampMaxLagMs: true,
	KeyMessageIDField:         true,
	KeyStateProvider:          true,
	KeyStateProviderConfig:    true,
	KeyLateTupleStream:        true,
}

// IsOverridable reports whether key is in the component-overridable allow-list.
func IsOverridable(key string) bool {
	return overridableKeys[key]
}

// TopologyConfig is the flattened set of global topology options, loaded
// with viper: defaults set first, then a config file, then environment
// overrides.
type TopologyConfig struct {
	v *viper.Viper
}

// NewTopologyConfig builds an empty topology config with the runtime
// defaults this core requires.
func NewTopologyConfig() *TopologyConfig {
	v := viper.New()
	setTopologyDefaults(v)
	return &TopologyConfig{v: v}
}

// LoadTopologyConfig reads a YAML/JSON/TOML topology file (format sniffed by
// viper from the extension), applying defaults first and environment
// overrides last.
func LoadTopologyConfig(path string) (*TopologyConfig, error) {
	v := viper.New()
	setTopologyDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("streamcore: read topology config %q: %w", path, err)
	}

	v.AutomaticEnv()

	return &TopologyConfig{v: v}, nil
}

func setTopologyDefaults(v *viper.Viper) {
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyMaxSpoutPending, 0) // 0 = unbounded
	v.SetDefault(KeyMaxTaskParallelism, 0)
	v.SetDefault(KeyTickTupleFreqSecs, 10)
	v.SetDefault(KeySleepSpoutWaitStrategy, 1)
	v.SetDefault(KeySpoutWaitStrategy, "default")
	v.SetDefault(KeyEnableMessageTimeouts, true)

	v.SetDefault(KeyExecutorSendBufferSize, 1024)
	v.SetDefault(KeyDisruptorWaitTimeoutMs, 1000)
	v.SetDefault(KeyDisruptorBatchSize, 100)
	v.SetDefault(KeyDisruptorBatchTimeoutMs, 1)
	v.SetDefault(KeyBackpressureEnable, true)
	v.SetDefault(KeyBackpressureHighWM, 0.8)
	v.SetDefault(KeyBackpressureLowWM, 0.2)
}

// All returns a flattened copy of every configured key/value pair, keyed by
// the same dotted keys used throughout this package (KeyDebug, etc). viper's
// own AllSettings nests dotted keys into maps-of-maps, so this walks
// AllKeys() and re-reads each one through Get instead.
func (c *TopologyConfig) All() map[string]any {
	keys := c.v.AllKeys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = c.v.Get(k)
	}
	return out
}

// Get returns the raw value of key, or nil if unset.
func (c *TopologyConfig) Get(key string) any {
	return c.v.Get(key)
}

// GetBool returns key as a bool.
func (c *TopologyConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetInt returns key as an int.
func (c *TopologyConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 returns key as a float64.
func (c *TopologyConfig) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetString returns key as a string.
func (c *TopologyConfig) GetString(key string) string {
	return c.v.GetString(key)
}

// GetDuration returns key parsed as a time.Duration; values are accepted as
// either a viper-parseable duration string or a bare number of milliseconds.
func (c *TopologyConfig) GetDuration(key string) time.Duration {
	raw := c.v.Get(key)
	switch v := raw.(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	default:
		if ms := c.v.GetInt64(key); ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return 0
}

// Set overrides key, used by tests and by the demo CLI to build ad hoc
// topology configs without a file on disk.
func (c *TopologyConfig) Set(key string, value any) {
	c.v.Set(key, value)
}
