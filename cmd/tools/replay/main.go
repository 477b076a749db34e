package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/yanun0323/errors"

	"hwstrat/internal/codec"
	"hwstrat/internal/obs"
	"hwstrat/internal/recorder"
	"hwstrat/internal/schema"
	"hwstrat/internal/state"
)

func main() {
	dir := flag.String("dir", "testdata/wal", "Audit trail directory")
	prefix := flag.String("prefix", "", "Segment file prefix (default: audit)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	decode := flag.Bool("decode", false, "Decode known payload types")
	quiet := flag.Bool("quiet", false, "Do not print records")
	instruments := flag.Int("instruments", 0, "Table size (default: from snapshot, else 256)")
	snapshotPath := flag.String("snapshot", "", "Snapshot to verify the rebuilt tables against")
	flag.Parse()

	var (
		expected *state.Snapshot
		upTo     = ^uint64(0)
	)
	if *snapshotPath != "" {
		s, err := state.ReadSnapshot(*snapshotPath)
		if err != nil {
			log.Fatalf("snapshot read failed: %v", err)
		}
		expected = &s
		upTo = s.LastSeq
		if *instruments == 0 {
			*instruments = s.InstrumentCount
		}
	}
	if *instruments == 0 {
		*instruments = 256
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:          *dir,
		FilePrefix:   *prefix,
		SkipChecksum: *noChecksum,
	})
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	tables := state.NewTables(*instruments)
	counts := make(map[schema.EventType]int)
	var index int
	var lastSeq uint64
	err = pb.Run(context.Background(), func(header schema.EventHeader, payload []byte) error {
		index++
		counts[header.Type]++
		if !*quiet {
			epoch, counter := obs.SplitTrace(header.TraceID)
			fmt.Printf("%06d seq=%d type=%s source=%d trace=%d/%d ts_event=%d len=%d\n",
				index, header.Seq, header.Type, header.Source, epoch, counter, header.TsEvent, len(payload))
			if *decode {
				printDecoded(header.Type, payload)
			}
		}
		if header.Seq > upTo {
			return nil
		}
		lastSeq = header.Seq
		return apply(tables, header, payload)
	})
	if err != nil {
		log.Fatalf("playback run failed: %v", err)
	}
	fmt.Printf("records=%d last_applied_seq=%d counts=%v\n", index, lastSeq, counts)

	if expected == nil {
		return
	}
	if err := state.CompareSnapshots(*expected, tables.Snapshot(lastSeq)); err != nil {
		log.Fatalf("snapshot mismatch: %v", err)
	}
	fmt.Printf("snapshot verified: configs=%d books=%d last_seq=%d\n", len(expected.Configs), len(expected.Books), expected.LastSeq)
}

func apply(tables *state.Tables, header schema.EventHeader, payload []byte) error {
	switch header.Type {
	case schema.EventConfigCommit:
		cfg, ok := codec.DecodeInstrumentConfig(payload)
		if !ok {
			return errors.Errorf("seq %d: bad config payload", header.Seq)
		}
		tables.ApplyConfig(cfg)
	case schema.EventBookUpdate:
		u, ok := codec.DecodeBookUpdate(payload)
		if !ok {
			return errors.Errorf("seq %d: bad book update payload", header.Seq)
		}
		tables.ApplyBookUpdate(u)
	}
	return nil
}

func printDecoded(t schema.EventType, payload []byte) {
	switch t {
	case schema.EventConfigCommit:
		cfg, ok := codec.DecodeInstrumentConfig(payload)
		if !ok {
			fmt.Println("  decode ConfigCommit failed")
			return
		}
		fmt.Printf("  config %+v\n", cfg)
	case schema.EventBookUpdate:
		u, ok := codec.DecodeBookUpdate(payload)
		if !ok {
			fmt.Println("  decode BookUpdate failed")
			return
		}
		fmt.Printf("  book instrument=%d side=%s price=%s uncross=%d\n", u.InstrumentID, u.Side, u.Price.Decimal(), u.UncrossDepth)
	case schema.EventStrategyDecision:
		d, ok := codec.DecodeDecision(payload)
		if !ok {
			fmt.Println("  decode StrategyDecision failed")
			return
		}
		fmt.Printf("  decision engine=%s fired=%v instrument=%d collection=%#x trade=%s reference=%s seqnum=%d\n",
			d.Engine, d.Fired, d.InstrumentID, d.CollectionID, d.TradePrice.Decimal(), d.ReferencePrice.Decimal(), d.SequenceNumber)
	case schema.EventTrigger:
		cmd, ok := codec.DecodeTriggerCommand(payload)
		if !ok {
			fmt.Println("  decode Trigger failed")
			return
		}
		fmt.Printf("  trigger collection=%#x mask=%05b\n", cmd.CollectionID, cmd.ValidMask)
	case schema.EventNotification:
		n, err := codec.DecodeNotificationPayload(payload)
		if err != nil {
			fmt.Printf("  decode Notification failed: %v\n", err)
			return
		}
		fmt.Printf("  notification kind=%s source=%s msg_type=%d\n", n.Kind, n.Header.Source, n.Header.MsgType)
	}
}
