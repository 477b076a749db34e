package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hwstrat/internal/bus"
	"hwstrat/internal/host"
	"hwstrat/internal/obs"
	"hwstrat/internal/ops"
	"hwstrat/internal/pipeline"
	"hwstrat/internal/recorder"
	"hwstrat/internal/schema"
	"hwstrat/internal/state"
	"hwstrat/internal/store"
	"hwstrat/internal/strategy"
)

type runOptions struct {
	marketPath   string
	tcpPath      string
	udsPath      string
	snapshotPath string
	recover      bool
}

func run(ctx context.Context, loaded ops.Loaded, flags *runtimeFlags, opts runOptions) error {
	metrics := obs.NewMetrics()
	features := flags.Load()

	var archive *store.Archive
	if loaded.Database.DSN != "" {
		a, err := store.Open(databaseOption(loaded.Database))
		if err != nil {
			return err
		}
		defer a.Close()
		archive = a
	}

	var (
		tables  *state.Tables
		lastSeq uint64
	)
	if opts.recover {
		res, err := recoverTables(ctx, loaded, opts.snapshotPath)
		if err != nil {
			return err
		}
		tables, lastSeq = res.Tables, res.LastSeq
		logs.Infof("recovered tables, last_seq=%d applied=%d", res.LastSeq, res.Applied)
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithMetrics(metrics),
		pipeline.WithTraces(obs.NewRunTraceGenerator(time.Now())),
	}

	var wg sync.WaitGroup
	var writer *recorder.Writer
	var auditQ *bus.EventQueue
	if loaded.Recorder != nil && features.AuditTrail {
		w, err := recorder.NewWriter(*loaded.Recorder)
		if err != nil {
			return err
		}
		w.Resume(lastSeq)
		writer = w
		auditQ = bus.NewEventQueue(loaded.Pipeline.AuditDepth)
		pipeOpts = append(pipeOpts, pipeline.WithAudit(auditQ))

		wg.Add(1)
		go func() {
			defer wg.Done()
			auditQ.Run(context.Background(), func(e bus.Event) {
				if err := writer.Append(e.Header, e.Payload); err != nil {
					logs.Errorf("audit append failed, seq=%d err: %+v", e.Header.Seq, err)
				}
			})
		}()
	}

	var sink *archiveSink
	if archive != nil {
		sink = newArchiveSink(archive, flags, metrics, loaded.Pipeline.AuditDepth)
		pipeOpts = append(pipeOpts,
			pipeline.WithCommitHook(sink.Config),
			pipeline.WithDecisionHook(sink.Decision),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Run(context.Background())
		}()
	}

	p, err := pipeline.New(pipeline.Config{
		InstrumentCount: loaded.Pipeline.InstrumentCount,
		QueueDepth:      loaded.Pipeline.QueueDepth,
		MarketDepth:     loaded.Pipeline.MarketDepth,
		HostDepth:       loaded.Pipeline.HostDepth,
		OutputDepth:     loaded.Pipeline.OutputDepth,
		Tcp:             loaded.Tcp,
		HonorArgBitmap:  features.HonorArgBitmap,
	}, pipeOpts...)
	if err != nil {
		return err
	}

	if tables != nil {
		// Recovered tables already hold every earlier preload.
		p.Restore(tables, lastSeq)
	} else if err := preload(ctx, p, archive, loaded.Instruments); err != nil {
		return err
	}

	d, err := newDriver(opts, loaded.Registry)
	if err != nil {
		return err
	}
	d.snapshots = &snapshotter{
		path:  opts.snapshotPath,
		every: func() int { return flags.Load().SnapshotEvery },
		last:  lastSeq,
	}
	if opts.udsPath != "" {
		ep, err := host.Listen(opts.udsPath, loaded.Pipeline.HostDepth)
		if err != nil {
			return err
		}
		defer ep.Close()
		d.attach(ep)
		go func() {
			if err := ep.Serve(ctx); err != nil {
				logs.Errorf("host link stopped, err: %+v", err)
			}
		}()
	}

	logs.Infof("pipeline running, instruments=%d queue_depth=%d audit=%v archive=%v",
		loaded.Pipeline.InstrumentCount, loaded.Pipeline.QueueDepth, writer != nil, archive != nil)
	runErr := p.Run(ctx, d)

	if auditQ != nil {
		auditQ.Close()
	}
	if sink != nil {
		sink.Close()
	}
	wg.Wait()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logs.Errorf("audit close failed, err: %+v", err)
		}
	}
	if err := d.snapshots.write(p); err != nil {
		logs.Errorf("final snapshot failed, err: %+v", err)
	}
	logMetrics(metrics.Snapshot())
	return runErr
}

// preload seeds the configuration table from the archive, then from the
// config file.
func preload(ctx context.Context, p *pipeline.Pipeline, archive *store.Archive, instruments []schema.InstrumentConfig) error {
	if archive != nil {
		cfgs, err := archive.LoadConfigs(ctx)
		if err != nil {
			return err
		}
		if err := p.Preload(cfgs); err != nil {
			return err
		}
		logs.Infof("preloaded %d configurations from the archive", len(cfgs))
	}
	return p.Preload(instruments)
}

func recoverTables(ctx context.Context, loaded ops.Loaded, snapshotPath string) (state.RecoverResult, error) {
	if loaded.Recorder == nil {
		return state.RecoverResult{}, errors.New("recover needs an audit directory")
	}
	if snapshotPath != "" {
		if _, err := os.Stat(snapshotPath); err != nil {
			logs.Infof("no snapshot at %s, replaying the full audit trail", snapshotPath)
			snapshotPath = ""
		}
	}
	return state.Recover(ctx, state.RecoverConfig{
		AuditDir:        loaded.Recorder.Dir,
		FilePrefix:      loaded.Recorder.FilePrefix,
		SnapshotPath:    snapshotPath,
		InstrumentCount: loaded.Pipeline.InstrumentCount,
	})
}

// archiveSink moves configuration commits and decisions off the scheduler
// goroutine into the database.
type archiveSink struct {
	archive *store.Archive
	flags   *runtimeFlags
	metrics *obs.Metrics
	ch      chan archiveItem
}

type archiveItem struct {
	config   *schema.InstrumentConfig
	decision *strategy.Result
}

func newArchiveSink(a *store.Archive, flags *runtimeFlags, metrics *obs.Metrics, depth int) *archiveSink {
	if depth <= 0 {
		depth = 1
	}
	return &archiveSink{archive: a, flags: flags, metrics: metrics, ch: make(chan archiveItem, depth)}
}

func (s *archiveSink) Config(cfg schema.InstrumentConfig) {
	s.offer(archiveItem{config: &cfg})
}

func (s *archiveSink) Decision(r strategy.Result) {
	if !s.flags.Load().ArchiveDecisions {
		return
	}
	s.offer(archiveItem{decision: &r})
}

func (s *archiveSink) offer(item archiveItem) {
	select {
	case s.ch <- item:
	default:
		s.metrics.IncQueueDrop()
	}
}

func (s *archiveSink) Close() {
	close(s.ch)
}

func (s *archiveSink) Run(ctx context.Context) {
	for item := range s.ch {
		var err error
		switch {
		case item.config != nil:
			err = s.archive.SaveConfig(ctx, *item.config)
		case item.decision != nil:
			err = s.archive.RecordDecision(ctx, item.decision.Decision, item.decision.TraceID)
		}
		if err != nil {
			logs.Errorf("archive write failed, err: %+v", err)
		}
	}
}

// snapshotter writes the tables every N audit records and once at exit.
type snapshotter struct {
	path  string
	every func() int
	last  uint64
}

func (s *snapshotter) maybe(p *pipeline.Pipeline) {
	if s == nil || s.path == "" {
		return
	}
	n := s.every()
	if n <= 0 || p.LastSeq()-s.last < uint64(n) {
		return
	}
	if err := s.write(p); err != nil {
		logs.Errorf("snapshot failed, err: %+v", err)
	}
}

func (s *snapshotter) write(p *pipeline.Pipeline) error {
	if s == nil || s.path == "" {
		return nil
	}
	snap := p.Snapshot()
	if err := state.WriteSnapshot(s.path, snap); err != nil {
		return err
	}
	s.last = snap.LastSeq
	return nil
}

func logMetrics(s obs.Snapshot) {
	logs.Infof("metrics: steps=%d evaluations=%v decisions=%v triggers=%v notifications=%v",
		s.Steps, s.Evaluations, s.Decisions, s.Triggers, s.NotificationCounts)
	logs.Infof("metrics: commits=%d aborted=%d ignored=%d checksum_errors=%d backpressure=%v drops=%d closed=%d",
		s.ConfigCommits, s.AbortedMessages, s.IgnoredMessages, s.ChecksumErrors, s.Backpressure, s.QueueDrops, s.QueueClosed)
	logs.Infof("metrics: step_latency=%+v decision_latency=%+v event_latency=%+v",
		s.StepLatency, s.DecisionLatency, s.EventLatency)
}
