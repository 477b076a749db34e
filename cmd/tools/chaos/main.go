package main

import (
	"bufio"
	"flag"
	"log"
	"os"

	"github.com/yanun0323/errors"

	"hwstrat/internal/chaos"
	"hwstrat/internal/codec"
)

func main() {
	input := flag.String("input", "testdata/market.hex", "Input vector file")
	output := flag.String("output", "testdata/market_chaos.hex", "Output vector file")
	kind := flag.String("kind", "market", "Vector kind used to validate lines: market|tcp|config|raw")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	dropRate := flag.Float64("drop-rate", 0, "Drop probability [0-1]")
	dupRate := flag.Float64("dup-rate", 0, "Duplicate probability [0-1]")
	reorderWindow := flag.Int("reorder-window", 1, "Reorder window (>=1)")
	flag.Parse()

	validate, err := validator(*kind)
	if err != nil {
		log.Fatalf("invalid kind: %v", err)
	}

	engine, err := chaos.NewEngine[string](chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		ReorderWindow: *reorderWindow,
	})
	if err != nil {
		log.Fatalf("chaos config invalid: %v", err)
	}

	in, err := os.Open(*input)
	if err != nil {
		log.Fatalf("open input failed: %v", err)
	}
	defer in.Close()

	out, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create output failed: %v", err)
	}
	w := bufio.NewWriter(out)

	var read, written int
	emit := func(lines []string) error {
		for _, line := range lines {
			if _, err := w.WriteString(line + "\n"); err != nil {
				return errors.Wrap(err, "write output")
			}
			written++
		}
		return nil
	}
	err = codec.ScanVectorLines(in, func(lineNo int, line []byte) error {
		if err := validate(line); err != nil {
			return errors.Wrap(err, "invalid vector").With("line", lineNo)
		}
		read++
		return emit(engine.Process(string(line)))
	})
	if err == nil {
		err = emit(engine.Flush())
	}
	if err != nil {
		log.Fatalf("chaos failed: %v", err)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("flush output failed: %v", err)
	}
	if err := out.Close(); err != nil {
		log.Fatalf("close output failed: %v", err)
	}

	dropped, duplicated := engine.Stats()
	log.Printf("read=%d written=%d dropped=%d duplicated=%d", read, written, dropped, duplicated)
}

func validator(kind string) (func([]byte) error, error) {
	switch kind {
	case "market":
		return func(line []byte) error {
			_, err := codec.ParseMarketLine(line)
			return err
		}, nil
	case "tcp":
		return func(line []byte) error {
			_, err := codec.ParseTcpLine(line)
			return err
		}, nil
	case "config":
		return func(line []byte) error {
			_, err := codec.ParseConfigLine(line)
			return err
		}, nil
	case "raw":
		return func([]byte) error { return nil }, nil
	}
	return nil, errors.Errorf("unknown kind %q", kind)
}
