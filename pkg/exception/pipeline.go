package exception

import "github.com/yanun0323/errors"

// Pipeline errors
var (
	ErrPipelineHalted      = errors.New("pipeline: halted")
	ErrInvalidPipelineConf = errors.New("pipeline: invalid config")
	ErrInstrumentRange     = errors.New("pipeline: instrument id out of range")
)
