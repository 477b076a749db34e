package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"hwstrat/internal/codec"
	"hwstrat/internal/host"
	"hwstrat/internal/schema"
)

func main() {
	udsPath := flag.String("uds", "/tmp/hwstrat.sock", "Pipeline host link socket")
	scriptPath := flag.String("script", "", "JSON script of configurations and software triggers")
	hexPath := flag.String("hex", "", "Hex vector file of configuration lines")
	wait := flag.Duration("wait", 500*time.Millisecond, "How long to wait for notifications after the last send")
	dialTimeout := flag.Duration("dial-timeout", 5*time.Second, "How long to retry connecting")
	flag.Parse()

	var messages [][]schema.DMAWord
	if *scriptPath != "" {
		s, err := LoadScript(*scriptPath)
		if err != nil {
			log.Fatalf("script load failed: %v", err)
		}
		if messages, err = s.Messages(); err != nil {
			log.Fatalf("script encode failed: %v", err)
		}
	}
	if *hexPath != "" {
		f, err := os.Open(*hexPath)
		if err != nil {
			log.Fatalf("open hex vectors failed: %v", err)
		}
		updates, err := codec.ParseConfigUpdates(f)
		_ = f.Close()
		if err != nil {
			log.Fatalf("hex parse failed: %v", err)
		}
		for _, u := range updates {
			messages = append(messages, codec.ConfigUpdateWords(u))
		}
	}
	if len(messages) == 0 {
		log.Fatalf("nothing to send: use -script or -hex")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *dialTimeout)
	link, err := host.Dial(ctx, *udsPath)
	cancel()
	if err != nil {
		log.Fatalf("dial %s failed: %v", *udsPath, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			words, err := link.Receive()
			if err != nil {
				if !stderrors.Is(err, io.EOF) {
					log.Printf("receive failed: %v", err)
				}
				return
			}
			printNotification(words)
		}
	}()

	for i, msg := range messages {
		if err := link.Send(msg); err != nil {
			log.Fatalf("send message %d failed: %v", i, err)
		}
		fmt.Printf("sent message %d (%d words)\n", i, len(msg))
	}

	time.Sleep(*wait)
	_ = link.Close()
	<-done
}

func printNotification(words []schema.DMAWord) {
	n, err := codec.DecodeNotification(words)
	if err != nil {
		fmt.Printf("notification (%d words) undecodable: %v\n", len(words), err)
		return
	}
	switch n.Kind {
	case schema.NotificationConfigAck:
		fmt.Printf("config ack: %+v\n", n.ConfigAck)
	case schema.NotificationTickToCancel:
		fmt.Printf("tick-to-cancel: %+v\n", n.TickToCancel)
	case schema.NotificationTickToTrade:
		fmt.Printf("tick-to-trade: %+v\n", n.TickToTrade)
	case schema.NotificationTcpConsumer:
		fmt.Printf("tcp session: %+v\n", n.TcpConsumer)
	default:
		fmt.Printf("notification %s: %+v\n", n.Kind, n.Header)
	}
}
