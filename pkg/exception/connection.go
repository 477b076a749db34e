package exception

import "github.com/yanun0323/errors"

var (
	ErrHostLinkClosed  = errors.New("host link: closed")
	ErrHostFrameLength = errors.New("host link: frame length mismatch")
)
