package exception

import "github.com/yanun0323/errors"

// General errors
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrBuffTooSmall    = errors.New("encode buff is too small")
)
