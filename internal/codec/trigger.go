package codec

import (
	"hwstrat/internal/schema"
	"hwstrat/pkg/exception"
)

// TriggerWidth is the width of a trigger command vector.
const TriggerWidth = 664

// TriggerArgSize is the byte size of one trigger argument.
const TriggerArgSize = 16

const (
	trgCollectionOff, trgCollectionLen = 0, 16
	trgValidOff, trgValidLen           = 16, 8
	trgArg0Off, trgArgLen              = 24, 128
)

// TriggerWord is one beat of the trigger output channel. Trigger commands
// always fit a single terminal word.
type TriggerWord struct {
	Data BitVector
	Last bool
}

// NewTriggerCommand binds byte arguments to a collection. Empty slots encode
// as zero and are left out of the mask; a non-empty argument after an empty
// slot is rejected.
func NewTriggerCommand(collectionID uint16, args ...[]byte) (schema.TriggerCommand, error) {
	cmd := schema.TriggerCommand{CollectionID: collectionID}
	if len(args) > schema.TriggerArgCount {
		return schema.TriggerCommand{}, exception.ErrTooManyArguments
	}
	gap := false
	for i, arg := range args {
		if len(arg) == 0 {
			gap = true
			continue
		}
		if gap {
			return schema.TriggerCommand{}, exception.ErrArgumentGap
		}
		if len(arg) > TriggerArgSize {
			return schema.TriggerCommand{}, exception.ErrArgumentTooLarge
		}
		cmd.Args[i] = schema.Uint128FromBytes(arg)
		cmd.ValidMask |= 1 << i
	}
	return cmd, nil
}

// NewTriggerCommandValues binds numeric arguments; every value given is valid.
func NewTriggerCommandValues(collectionID uint16, args ...schema.Uint128) (schema.TriggerCommand, error) {
	if len(args) > schema.TriggerArgCount {
		return schema.TriggerCommand{}, exception.ErrTooManyArguments
	}
	cmd := schema.TriggerCommand{CollectionID: collectionID}
	for i, arg := range args {
		cmd.Args[i] = arg
		cmd.ValidMask |= 1 << i
	}
	return cmd, nil
}

// ValidateMask checks that the valid bits are contiguous from bit 0.
func ValidateMask(mask uint8) error {
	if mask>>schema.TriggerArgCount != 0 {
		return exception.ErrInvalidArgumentMask
	}
	if mask&(mask+1) != 0 {
		return exception.ErrInvalidArgumentMask
	}
	return nil
}

// EncodeTrigger packs a command, then mirrors the whole vector so that
// collection_id ends up on the most significant bits.
func EncodeTrigger(cmd schema.TriggerCommand) (TriggerWord, error) {
	if err := ValidateMask(cmd.ValidMask); err != nil {
		return TriggerWord{}, err
	}
	d := NewBitVector(TriggerWidth)
	d.SetUint(trgCollectionOff, trgCollectionLen, uint64(cmd.CollectionID))
	d.SetUint(trgValidOff, trgValidLen, uint64(cmd.ValidMask))
	for i, arg := range cmd.Args {
		d.SetUint128(trgArg0Off+i*trgArgLen, arg)
	}
	return TriggerWord{Data: d.Reverse(), Last: true}, nil
}

// DecodeTrigger is the inverse of EncodeTrigger.
func DecodeTrigger(w TriggerWord) (schema.TriggerCommand, error) {
	if w.Data.Width() != TriggerWidth {
		return schema.TriggerCommand{}, exception.ErrInvalidWidth
	}
	if !w.Last {
		return schema.TriggerCommand{}, exception.ErrNotTerminalWord
	}
	d := w.Data.Reverse()
	cmd := schema.TriggerCommand{
		CollectionID: uint16(d.Uint(trgCollectionOff, trgCollectionLen)),
		ValidMask:    uint8(d.Uint(trgValidOff, trgValidLen)),
	}
	if err := ValidateMask(cmd.ValidMask); err != nil {
		return schema.TriggerCommand{}, err
	}
	for i := range cmd.Args {
		cmd.Args[i] = d.Uint128(trgArg0Off + i*trgArgLen)
	}
	return cmd, nil
}

// TriggerWireBytes returns the 83-byte image of an encoded trigger.
func TriggerWireBytes(w TriggerWord) []byte {
	return w.Data.Bytes()
}

// TriggerFromWireBytes rebuilds a trigger word from its byte image.
func TriggerFromWireBytes(src []byte) (TriggerWord, error) {
	d, err := BitVectorFromBytes(TriggerWidth, src)
	if err != nil {
		return TriggerWord{}, exception.ErrInvalidWidth
	}
	return TriggerWord{Data: d, Last: true}, nil
}
