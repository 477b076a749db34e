package recorder

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yanun0323/errors"

	"hwstrat/internal/schema"
)

// PlaybackConfig selects the segments and records to replay.
type PlaybackConfig struct {
	Dir          string
	FilePrefix   string
	SkipChecksum bool
	// Types limits playback to the listed event types. Empty means all.
	Types []schema.EventType
}

// Handler receives each replayed record. The payload is only valid for
// the duration of the call.
type Handler func(schema.EventHeader, []byte) error

// Playback replays audit segments in creation order.
type Playback struct {
	cfg   PlaybackConfig
	types map[schema.EventType]struct{}
}

func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	if cfg.Dir == "" {
		return nil, errors.New("invalid playback config: dir is empty")
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = defaultFilePrefix
	}
	p := &Playback{cfg: cfg}
	if len(cfg.Types) > 0 {
		p.types = make(map[schema.EventType]struct{}, len(cfg.Types))
		for _, t := range cfg.Types {
			p.types[t] = struct{}{}
		}
	}
	return p, nil
}

// Segments lists the segment files of the directory in replay order.
func (p *Playback) Segments() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "list audit dir").With("dir", p.cfg.Dir)
	}
	prefix := p.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// Run calls handler for every selected record until the trail ends, the
// handler fails or ctx is done.
func (p *Playback) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("playback handler is nil")
	}
	files, err := p.Segments()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := p.playFile(ctx, path, handler); err != nil {
			return err
		}
	}
	return nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler Handler) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open audit segment").With("segment", path)
	}
	defer file.Close()

	reader := NewReader(file, p.cfg.SkipChecksum)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, payload, err := reader.Next()
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read audit record").With("segment", path)
		}
		if p.types != nil {
			if _, ok := p.types[h.Type]; !ok {
				continue
			}
		}
		if err := handler(h, payload); err != nil {
			return err
		}
	}
}
