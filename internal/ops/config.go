package ops

import (
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"hwstrat/internal/recorder"
	"hwstrat/internal/schema"
	"hwstrat/internal/tcp"
)

const (
	defaultInstrumentCount = 256
	defaultQueueDepth      = 64
	defaultSnapshotEvery   = 1024
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Pipeline    PipelineConfig            `json:"pipeline"`
	Tcp         TcpConfig                 `json:"tcp"`
	Recorder    RecorderConfig            `json:"recorder"`
	Database    DatabaseConfig            `json:"database"`
	Profiling   ProfilingConfig           `json:"profiling"`
	Registry    RegistryConfig            `json:"registry"`
	Instruments []schema.InstrumentConfig `json:"instruments"`
	Features    FeatureFlagsConfig        `json:"features"`
}

// PipelineConfig sizes the tables and the queues between components.
type PipelineConfig struct {
	InstrumentCount int `json:"instrumentCount"`
	QueueDepth      int `json:"queueDepth"`
	MarketDepth     int `json:"marketDepth"`
	HostDepth       int `json:"hostDepth"`
	OutputDepth     int `json:"outputDepth"`
	AuditDepth      int `json:"auditDepth"`
}

// TcpConfig overrides the tcp consumer session policy.
type TcpConfig struct {
	TriggerSession *uint16 `json:"triggerSession"`
	NotifySession  *uint16 `json:"notifySession"`
	CollectionBase *uint16 `json:"collectionBase"`
}

// RecorderConfig describes the audit trail. Durations use time.ParseDuration syntax.
type RecorderConfig struct {
	Dir                string `json:"dir"`
	FilePrefix         string `json:"filePrefix"`
	SegmentMaxBytes    int64  `json:"segmentMaxBytes"`
	SegmentMaxDuration string `json:"segmentMaxDuration"`
	FlushInterval      string `json:"flushInterval"`
	SyncOnFlush        bool   `json:"syncOnFlush"`
}

// DatabaseConfig selects the archive database. An empty DSN disables it.
type DatabaseConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// ProfilingConfig enables continuous profiling when ServerAddress is set.
type ProfilingConfig struct {
	ApplicationName string `json:"applicationName"`
	ServerAddress   string `json:"serverAddress"`
}

// RegistryConfig names the instruments known to the host side.
type RegistryConfig struct {
	Instruments []InstrumentEntry `json:"instruments"`
}

// InstrumentEntry describes one registry entry.
type InstrumentEntry struct {
	Name       string `json:"name"`
	ID         uint32 `json:"id"`
	PriceScale int32  `json:"priceScale"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	HonorArgBitmap   *bool `json:"honorArgBitmap"`
	AuditTrail       *bool `json:"auditTrail"`
	ArchiveDecisions *bool `json:"archiveDecisions"`
	SnapshotEvery    *int  `json:"snapshotEvery"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	HonorArgBitmap   bool
	AuditTrail       bool
	ArchiveDecisions bool
	SnapshotEvery    int
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Pipeline    PipelineConfig
	Tcp         tcp.Policy
	Recorder    *recorder.Config
	Database    DatabaseConfig
	Profiling   ProfilingConfig
	Registry    *schema.Registry
	Instruments []schema.InstrumentConfig
	Features    FeatureFlags
}

// Default returns the configuration used when no file is given.
func Default() Loaded {
	return Loaded{
		Pipeline: PipelineConfig{}.withDefaults(),
		Tcp:      tcp.DefaultPolicy(),
		Registry: schema.NewRegistry(),
		Features: resolveFeatures(FeatureFlagsConfig{}),
	}
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	cfg, err := readFile(path)
	if err != nil {
		return Loaded{}, err
	}
	return cfg.Resolve()
}

// LoadFeatures re-reads only the feature flags of a config file.
func LoadFeatures(path string) (FeatureFlags, error) {
	cfg, err := readFile(path)
	if err != nil {
		return FeatureFlags{}, err
	}
	return resolveFeatures(cfg.Features), nil
}

func readFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, errors.Wrap(err, "read config").With("path", path)
	}
	var cfg FileConfig
	if err := sonic.ConfigStd.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, errors.Wrap(err, "decode config").With("path", path)
	}
	return cfg, nil
}

// Resolve validates the file layout and builds the runtime configuration.
func (c FileConfig) Resolve() (Loaded, error) {
	pipeline := c.Pipeline.withDefaults()
	if err := pipeline.Validate(); err != nil {
		return Loaded{}, err
	}
	registry, err := buildRegistry(c.Registry, pipeline.InstrumentCount)
	if err != nil {
		return Loaded{}, err
	}
	if err := validateInstruments(c.Instruments, pipeline.InstrumentCount); err != nil {
		return Loaded{}, err
	}
	rec, err := c.Recorder.resolve()
	if err != nil {
		return Loaded{}, err
	}
	if err := c.Database.Validate(); err != nil {
		return Loaded{}, err
	}
	features := resolveFeatures(c.Features)
	if features.SnapshotEvery < 0 {
		return Loaded{}, errors.New("invalid features: snapshotEvery must be >= 0")
	}
	return Loaded{
		Pipeline:    pipeline,
		Tcp:         c.Tcp.resolve(),
		Recorder:    rec,
		Database:    c.Database,
		Profiling:   c.Profiling,
		Registry:    registry,
		Instruments: c.Instruments,
		Features:    features,
	}, nil
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.InstrumentCount == 0 {
		c.InstrumentCount = defaultInstrumentCount
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = defaultQueueDepth
	}
	if c.MarketDepth == 0 {
		c.MarketDepth = c.QueueDepth
	}
	if c.HostDepth == 0 {
		c.HostDepth = c.QueueDepth
	}
	if c.OutputDepth == 0 {
		c.OutputDepth = c.QueueDepth
	}
	if c.AuditDepth == 0 {
		c.AuditDepth = 16 * c.QueueDepth
	}
	return c
}

// Validate checks the sizes are usable.
func (c PipelineConfig) Validate() error {
	switch {
	case c.InstrumentCount <= 0:
		return errors.New("invalid pipeline config: instrumentCount must be > 0")
	case c.QueueDepth <= 0, c.MarketDepth <= 0, c.HostDepth <= 0, c.OutputDepth <= 0, c.AuditDepth <= 0:
		return errors.New("invalid pipeline config: queue depths must be > 0")
	}
	return nil
}

func (c TcpConfig) resolve() tcp.Policy {
	p := tcp.DefaultPolicy()
	if c.TriggerSession != nil {
		p.TriggerSession = *c.TriggerSession
	}
	if c.NotifySession != nil {
		p.NotifySession = *c.NotifySession
	}
	if c.CollectionBase != nil {
		p.CollectionBase = *c.CollectionBase
	}
	return p
}

// resolve returns nil when no audit directory is configured.
func (c RecorderConfig) resolve() (*recorder.Config, error) {
	if c.Dir == "" {
		return nil, nil
	}
	cfg := recorder.DefaultConfig(c.Dir)
	if c.FilePrefix != "" {
		cfg.FilePrefix = c.FilePrefix
	}
	if c.SegmentMaxBytes != 0 {
		cfg.SegmentMaxBytes = c.SegmentMaxBytes
	}
	var err error
	if cfg.SegmentMaxDuration, err = parseDuration(c.SegmentMaxDuration); err != nil {
		return nil, errors.Wrap(err, "invalid recorder config: segmentMaxDuration")
	}
	if cfg.FlushInterval, err = parseDuration(c.FlushInterval); err != nil {
		return nil, errors.Wrap(err, "invalid recorder config: flushInterval")
	}
	cfg.SyncOnFlush = c.SyncOnFlush
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Validate checks the driver is supported when a DSN is set.
func (c DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return nil
	}
	switch c.Driver {
	case "", "sqlite", "postgres":
		return nil
	}
	return errors.Errorf("invalid database config: unsupported driver %q", c.Driver)
}

func buildRegistry(cfg RegistryConfig, instrumentCount int) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, inst := range cfg.Instruments {
		if int64(inst.ID) >= int64(instrumentCount) {
			return nil, errors.Errorf("invalid registry: instrument %s id %d outside table of %d", inst.Name, inst.ID, instrumentCount)
		}
		if err := reg.AddInstrument(inst.Name, inst.ID, inst.PriceScale); err != nil {
			return nil, errors.Wrap(err, "invalid registry")
		}
	}
	return reg, nil
}

func validateInstruments(cfgs []schema.InstrumentConfig, instrumentCount int) error {
	seen := make(map[uint32]struct{}, len(cfgs))
	for _, cfg := range cfgs {
		if int64(cfg.InstrumentID) >= int64(instrumentCount) {
			return errors.Errorf("invalid instruments: id %d outside table of %d", cfg.InstrumentID, instrumentCount)
		}
		if _, ok := seen[cfg.InstrumentID]; ok {
			return errors.Errorf("invalid instruments: id %d configured twice", cfg.InstrumentID)
		}
		seen[cfg.InstrumentID] = struct{}{}
	}
	return nil
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		HonorArgBitmap:   false,
		AuditTrail:       true,
		ArchiveDecisions: true,
		SnapshotEvery:    defaultSnapshotEvery,
	}
	if cfg.HonorArgBitmap != nil {
		flags.HonorArgBitmap = *cfg.HonorArgBitmap
	}
	if cfg.AuditTrail != nil {
		flags.AuditTrail = *cfg.AuditTrail
	}
	if cfg.ArchiveDecisions != nil {
		flags.ArchiveDecisions = *cfg.ArchiveDecisions
	}
	if cfg.SnapshotEvery != nil {
		flags.SnapshotEvery = *cfg.SnapshotEvery
	}
	return flags
}
