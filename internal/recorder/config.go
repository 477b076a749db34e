package recorder

import (
	"time"

	"github.com/yanun0323/errors"
)

const (
	defaultSegmentMaxBytes int64 = 64 << 20
	defaultBufferSize            = 64 * 1024
	defaultFilePrefix            = "audit"
	segmentSuffix                = ".wal"
)

// Config controls how the audit trail is split into segment files.
type Config struct {
	Dir                string        `json:"dir"`
	FilePrefix         string        `json:"filePrefix"`
	SegmentMaxBytes    int64         `json:"segmentMaxBytes"`
	SegmentMaxDuration time.Duration `json:"segmentMaxDuration"`
	BufferSize         int           `json:"bufferSize"`
	// FlushInterval bounds how long an appended record may sit in the
	// buffer. Zero flushes on every append.
	FlushInterval time.Duration `json:"flushInterval"`
	// SyncOnFlush fsyncs the segment after every flush.
	SyncOnFlush bool `json:"syncOnFlush"`
}

// DefaultConfig returns the baseline audit trail configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:             dir,
		FilePrefix:      defaultFilePrefix,
		SegmentMaxBytes: defaultSegmentMaxBytes,
		BufferSize:      defaultBufferSize,
	}
}

func (c Config) withDefaults() Config {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return errors.New("invalid recorder config: dir is empty")
	case c.SegmentMaxBytes <= recordOverhead:
		return errors.Errorf("invalid recorder config: segmentMaxBytes must exceed %d", recordOverhead)
	case c.BufferSize <= 0:
		return errors.New("invalid recorder config: bufferSize must be > 0")
	case c.SegmentMaxDuration < 0:
		return errors.New("invalid recorder config: segmentMaxDuration must be >= 0")
	case c.FlushInterval < 0:
		return errors.New("invalid recorder config: flushInterval must be >= 0")
	}
	return nil
}
