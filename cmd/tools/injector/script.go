package main

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"hwstrat/internal/codec"
	"hwstrat/internal/schema"
)

// Script lists the host messages to send, in order: configurations first,
// then software triggers.
type Script struct {
	AckRequest *bool                     `json:"ackRequest"`
	Configs    []schema.InstrumentConfig `json:"configs"`
	Triggers   []ScriptTrigger             `json:"triggers"`
}

// ScriptTrigger is one software trigger. Args are hex byte strings of at most
// 16 bytes, bound left aligned to consecutive slots.
type ScriptTrigger struct {
	CollectionID uint16   `json:"collectionId"`
	Args         []string `json:"args"`
}

func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, errors.Wrap(err, "read script").With("path", path)
	}
	var s Script
	if err := sonic.ConfigStd.Unmarshal(data, &s); err != nil {
		return Script{}, errors.Wrap(err, "decode script").With("path", path)
	}
	return s, nil
}

// Messages encodes every message of the script as DMA words.
func (s Script) Messages() ([][]schema.DMAWord, error) {
	ack := true
	if s.AckRequest != nil {
		ack = *s.AckRequest
	}

	out := make([][]schema.DMAWord, 0, len(s.Configs)+len(s.Triggers))
	for _, cfg := range s.Configs {
		out = append(out, codec.ConfigUpdateWords(codec.NewConfigUpdate(cfg, ack)))
	}
	for i, trig := range s.Triggers {
		args := make([][]byte, len(trig.Args))
		for k, a := range trig.Args {
			b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(a, "0x"), "0X"))
			if err != nil {
				return nil, errors.Wrap(err, "decode trigger argument").With("trigger", i)
			}
			args[k] = b
		}
		msg, err := codec.NewSoftwareTrigger(trig.CollectionID, args...)
		if err != nil {
			return nil, errors.Wrap(err, "build software trigger").With("trigger", i)
		}
		out = append(out, codec.SoftwareTriggerWords(msg))
	}
	return out, nil
}
