package store

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hwstrat/internal/schema"
	"hwstrat/pkg/conn"
)

// ConfigRow is the persisted form of one instrument configuration.
type ConfigRow struct {
	InstrumentID               uint32 `gorm:"primaryKey;autoIncrement:false"`
	Enabled                    bool
	TickToCancelThreshold      int64
	TickToCancelCollectionID   uint16
	TickToTradeBidPrice        int64
	TickToTradeBidCollectionID uint16
	TickToTradeAskPrice        int64
	TickToTradeAskCollectionID uint16
	UpdatedAt                  time.Time
}

func (ConfigRow) TableName() string { return "instrument_configs" }

// DecisionRow archives one strategy evaluation.
type DecisionRow struct {
	ID             uint64 `gorm:"primaryKey"`
	Engine         string `gorm:"index;size:32"`
	InstrumentID   uint32 `gorm:"index"`
	Fired          bool
	IsBid          bool
	CollectionID   uint16
	Timestamp      uint32
	SequenceNumber uint64
	TradePrice     int64
	ReferencePrice int64
	TraceID        uint64
	CreatedAt      time.Time
}

func (DecisionRow) TableName() string { return "decisions" }

func configRow(cfg schema.InstrumentConfig) ConfigRow {
	return ConfigRow{
		InstrumentID:               cfg.InstrumentID,
		Enabled:                    cfg.Enabled,
		TickToCancelThreshold:      int64(cfg.TickToCancelThreshold),
		TickToCancelCollectionID:   cfg.TickToCancelCollectionID,
		TickToTradeBidPrice:        int64(cfg.TickToTradeBidPrice),
		TickToTradeBidCollectionID: cfg.TickToTradeBidCollectionID,
		TickToTradeAskPrice:        int64(cfg.TickToTradeAskPrice),
		TickToTradeAskCollectionID: cfg.TickToTradeAskCollectionID,
	}
}

func (r ConfigRow) config() schema.InstrumentConfig {
	return schema.InstrumentConfig{
		InstrumentID:               r.InstrumentID,
		Enabled:                    r.Enabled,
		TickToCancelThreshold:      schema.Price(r.TickToCancelThreshold),
		TickToCancelCollectionID:   r.TickToCancelCollectionID,
		TickToTradeBidPrice:        schema.Price(r.TickToTradeBidPrice),
		TickToTradeBidCollectionID: r.TickToTradeBidCollectionID,
		TickToTradeAskPrice:        schema.Price(r.TickToTradeAskPrice),
		TickToTradeAskCollectionID: r.TickToTradeAskCollectionID,
	}
}

// Archive persists committed configurations and strategy decisions.
type Archive struct {
	client *conn.Client
	db     *gorm.DB
}

// Open connects with option and migrates the archive tables.
func Open(option conn.Option) (*Archive, error) {
	client, err := conn.New(option)
	if err != nil {
		return nil, err
	}
	db := client.DB()
	if err := db.AutoMigrate(&ConfigRow{}, &DecisionRow{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate archive")
	}
	return &Archive{client: client, db: db}, nil
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	return a.client.Close()
}

// SaveConfig inserts or replaces the row of cfg.InstrumentID.
func (a *Archive) SaveConfig(ctx context.Context, cfg schema.InstrumentConfig) error {
	row := configRow(cfg)
	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "save config").With("instrument", cfg.InstrumentID)
	}
	return nil
}

// LoadConfigs returns every stored configuration in id order.
func (a *Archive) LoadConfigs(ctx context.Context) ([]schema.InstrumentConfig, error) {
	var rows []ConfigRow
	if err := a.db.WithContext(ctx).Order("instrument_id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load configs")
	}
	out := make([]schema.InstrumentConfig, len(rows))
	for i, r := range rows {
		out[i] = r.config()
	}
	return out, nil
}

// RecordDecision appends one evaluation.
func (a *Archive) RecordDecision(ctx context.Context, d schema.Decision, traceID uint64) error {
	row := DecisionRow{
		Engine:         d.Engine.String(),
		InstrumentID:   d.InstrumentID,
		Fired:          d.Fired,
		IsBid:          d.IsBid,
		CollectionID:   d.CollectionID,
		Timestamp:      d.Timestamp,
		SequenceNumber: d.SequenceNumber,
		TradePrice:     int64(d.TradePrice),
		ReferencePrice: int64(d.ReferencePrice),
		TraceID:        traceID,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "record decision").With("instrument", d.InstrumentID)
	}
	return nil
}

// Decisions returns the archived decisions of one instrument, oldest first.
func (a *Archive) Decisions(ctx context.Context, instrumentID uint32) ([]DecisionRow, error) {
	var rows []DecisionRow
	err := a.db.WithContext(ctx).Where("instrument_id = ?", instrumentID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "load decisions").With("instrument", instrumentID)
	}
	return rows, nil
}

// FiredCount counts archived decisions that fired, per engine name.
func (a *Archive) FiredCount(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Engine string
		Count  int64
	}
	err := a.db.WithContext(ctx).Model(&DecisionRow{}).
		Select("engine, count(*) as count").
		Where("fired = ?", true).
		Group("engine").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count decisions")
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Engine] = r.Count
	}
	return out, nil
}
