package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"

	"hwstrat/internal/codec"
	"hwstrat/internal/mdg"
	"hwstrat/internal/ops"
	"hwstrat/internal/schema"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config; its registry supplies the instruments")
	instruments := flag.String("instruments", "1", "Comma separated instrument ids when no config is given")
	output := flag.String("output", "", "Output vector file (default: stdout)")
	packets := flag.Int("packets", 100, "Number of packets to generate")
	basePrice := flag.String("base-price", "100", "Starting mid price")
	tickSize := flag.String("tick", "0.01", "Tick size")
	spreadTicks := flag.Int("spread-ticks", 1, "Ticks from mid to each side of the book")
	tradeRate := flag.Float64("trade-rate", 0.3, "Probability of a trade summary per packet [0-1]")
	uncrossRate := flag.Float64("uncross-rate", 0, "Probability of an uncross extra word per book update [0-1]")
	seed := flag.Int64("seed", 1, "RNG seed")
	flag.Parse()

	if *packets <= 0 {
		log.Fatalf("packets must be > 0")
	}

	ids, err := instrumentIDs(*configPath, *instruments)
	if err != nil {
		log.Fatalf("instrument list failed: %v", err)
	}
	base, err := schema.ParsePrice(*basePrice)
	if err != nil {
		log.Fatalf("invalid base price: %v", err)
	}
	tick, err := schema.ParsePrice(*tickSize)
	if err != nil {
		log.Fatalf("invalid tick size: %v", err)
	}

	generator, err := mdg.NewGenerator(mdg.Config{
		Instruments: ids,
		BasePrice:   base,
		TickSize:    tick,
		SpreadTicks: *spreadTicks,
		TradeRate:   *tradeRate,
		UncrossRate: *uncrossRate,
		Seed:        *seed,
	})
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("create output failed: %v", err)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "# eoe mid opcode order_id buy qty price timestamp instr_ascii instr_bin instr_id data0 data1 data2\n")

	var words, trades int
	for i := 0; i < *packets; i++ {
		for _, ev := range generator.Next() {
			if ev.Opcode == schema.OpcodeTradeSummary {
				trades++
			}
			if _, err := w.WriteString(codec.FormatMarketLine(ev) + "\n"); err != nil {
				log.Fatalf("write failed: %v", err)
			}
			words++
		}
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("flush failed: %v", err)
	}
	log.Printf("packets=%d words=%d trades=%d instruments=%v", generator.Sequence(), words, trades, ids)
}

func instrumentIDs(configPath, list string) ([]uint32, error) {
	if configPath != "" {
		loaded, err := ops.Load(configPath)
		if err != nil {
			return nil, err
		}
		var ids []uint32
		for _, inst := range loaded.Registry.Instruments() {
			ids = append(ids, inst.ID)
		}
		if len(ids) == 0 {
			return nil, errors.New("config registry has no instruments")
		}
		return ids, nil
	}

	var ids []uint32
	for _, tok := range strings.Split(list, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseUint(tok, 0, 32)
		if err != nil {
			return nil, errors.Wrap(err, "parse instrument id").With("token", tok)
		}
		ids = append(ids, uint32(v))
	}
	return ids, nil
}
