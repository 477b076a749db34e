package exception

import "github.com/yanun0323/errors"

// Codec errors
var (
	ErrInvalidWordIndex    = errors.New("codec: invalid word index")
	ErrInvalidWidth        = errors.New("codec: invalid bit vector width")
	ErrArgumentGap         = errors.New("codec: trigger argument follows an empty slot")
	ErrArgumentTooLarge    = errors.New("codec: trigger argument larger than 16 bytes")
	ErrTooManyArguments    = errors.New("codec: too many trigger arguments")
	ErrInvalidArgumentMask = errors.New("codec: trigger argument mask is not contiguous")
	ErrNotTerminalWord     = errors.New("codec: single word message without last flag")
	ErrCorruptedHeader     = errors.New("codec: corrupted application header")
	ErrUnknownSource       = errors.New("codec: unknown message source")
	ErrTruncatedMessage    = errors.New("codec: truncated message")
	ErrInvalidHexVector    = errors.New("codec: invalid hex vector")
)
