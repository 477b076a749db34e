package main

import (
	"context"
	"sync/atomic"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"hwstrat/internal/ops"
)

type runtimeFlags struct {
	v atomic.Value
}

func newRuntimeFlags(flags ops.FeatureFlags) *runtimeFlags {
	var rf runtimeFlags
	rf.v.Store(flags)
	return &rf
}

func (r *runtimeFlags) Load() ops.FeatureFlags {
	return r.v.Load().(ops.FeatureFlags)
}

func (r *runtimeFlags) Update(flags ops.FeatureFlags) {
	r.v.Store(flags)
}

// watchConfig re-reads the feature flags every interval. Sizes and
// wiring need a restart.
func watchConfig(ctx context.Context, path string, interval time.Duration, update func(ops.FeatureFlags)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last ops.FeatureFlags
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flags, err := ops.LoadFeatures(path)
			if err != nil {
				logs.Errorf("config reload failed, err: %+v", err)
				continue
			}
			if flags != last {
				logs.Infof("feature flags reloaded: %+v", flags)
				last = flags
			}
			update(flags)
		}
	}
}

func startProfiler(cfg ops.ProfilingConfig) (*pyroscope.Profiler, error) {
	name := cfg.ApplicationName
	if name == "" {
		name = "hwstrat"
	}
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.ServerAddress,
		Logger:          profilerLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}

type profilerLogger struct{}

func (profilerLogger) Infof(_ string, _ ...interface{})  {}
func (profilerLogger) Debugf(_ string, _ ...interface{}) {}
func (profilerLogger) Errorf(format string, args ...interface{}) {
	logs.Errorf("[PYROSCOPE] "+format, args...)
}
