package codec

import (
	"hwstrat/internal/schema"
	"hwstrat/pkg/exception"
)

// DMAWordSize is the byte size of one DMA word.
const DMAWordSize = 16

// WordBytes returns the big-endian image of a DMA word.
func WordBytes(w schema.DMAWord) [DMAWordSize]byte {
	return w.Data.Bytes()
}

// WordFromBytes reads one DMA word image.
func WordFromBytes(b []byte, last bool) (schema.DMAWord, error) {
	if len(b) != DMAWordSize {
		return schema.DMAWord{}, exception.ErrBuffTooSmall
	}
	return schema.DMAWord{Data: schema.Uint128FromBytes(b), Last: last}, nil
}

// AppendWords appends the concatenated images of words to dst.
func AppendWords(dst []byte, words []schema.DMAWord) []byte {
	for _, w := range words {
		b := WordBytes(w)
		dst = append(dst, b[:]...)
	}
	return dst
}

// SplitWords cuts a host message image into DMA words. The final word
// carries last.
func SplitWords(b []byte) ([]schema.DMAWord, error) {
	if len(b) == 0 || len(b)%DMAWordSize != 0 {
		return nil, exception.ErrTruncatedMessage
	}
	n := len(b) / DMAWordSize
	words := make([]schema.DMAWord, n)
	for i := range words {
		words[i] = schema.DMAWord{
			Data: schema.Uint128FromBytes(b[i*DMAWordSize : (i+1)*DMAWordSize]),
			Last: i == n-1,
		}
	}
	return words, nil
}

// ConfigUpdateWords encodes every word of an instrument configuration message.
func ConfigUpdateWords(msg schema.ConfigUpdate) []schema.DMAWord {
	words := make([]schema.DMAWord, 0, ConfigUpdateWordCount)
	for i := 1; i <= ConfigUpdateWordCount; i++ {
		w, _ := ConfigUpdateWord(msg, i)
		words = append(words, w)
	}
	return words
}

// SoftwareTriggerWords encodes every word of a software trigger message.
func SoftwareTriggerWords(msg schema.SoftwareTrigger) []schema.DMAWord {
	words := make([]schema.DMAWord, 0, SoftwareTriggerWordCount)
	for i := 1; i <= SoftwareTriggerWordCount; i++ {
		w, _ := SoftwareTriggerWord(msg, i)
		words = append(words, w)
	}
	return words
}

// HostMessageWordCount returns the expected word count of a host message
// addressed by header h, or 0 when the destination is unknown.
func HostMessageWordCount(h schema.HostHeader) int {
	switch h.Dest {
	case schema.ModuleInstrumentConfiguration:
		return ConfigUpdateWordCount
	case schema.ModuleSoftwareTrigger:
		return SoftwareTriggerWordCount
	default:
		return 0
	}
}

// IsRoutableHostHeader reports whether h opens a message the configuration
// store handles: a version 1 instrument update or software trigger.
func IsRoutableHostHeader(h schema.HostHeader) bool {
	if h.Version != schema.HeaderVersion {
		return false
	}
	switch h.Dest {
	case schema.ModuleInstrumentConfiguration:
		return h.MsgType == schema.MsgTypeUpdateInstrumentData
	case schema.ModuleSoftwareTrigger:
		return true
	default:
		return false
	}
}
