package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"hwstrat/internal/codec"
	"hwstrat/internal/recorder"
	"hwstrat/internal/schema"
)

func main() {
	dir := flag.String("dir", "testdata/wal", "Audit trail directory")
	prefix := flag.String("prefix", "", "Segment file prefix (default: audit)")
	collection := flag.Int("collection", -1, "Only print this collection id")
	flag.Parse()

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:        *dir,
		FilePrefix: *prefix,
		Types:      []schema.EventType{schema.EventTrigger},
	})
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	var total int
	err = pb.Run(context.Background(), func(header schema.EventHeader, payload []byte) error {
		cmd, ok := codec.DecodeTriggerCommand(payload)
		if !ok {
			fmt.Printf("seq=%d undecodable trigger, len=%d\n", header.Seq, len(payload))
			return nil
		}
		if *collection >= 0 && int(cmd.CollectionID) != *collection {
			return nil
		}
		total++

		args := make([]string, 0, schema.TriggerArgCount)
		for i := 0; i < schema.TriggerArgCount; i++ {
			if cmd.ValidMask&(1<<i) == 0 {
				args = append(args, "-")
				continue
			}
			args = append(args, cmd.Args[i].String())
		}
		fmt.Printf("seq=%d port=%d ts=%d collection=%#x mask=%05b args=[%s]\n",
			header.Seq, header.Flags, header.TsEvent, cmd.CollectionID, cmd.ValidMask, strings.Join(args, " "))
		return nil
	})
	if err != nil {
		log.Fatalf("playback run failed: %v", err)
	}
	fmt.Printf("triggers=%d\n", total)
}
