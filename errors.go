package ethercat

import "errors"

var (
	ErrIllegalArgument = errors.New("error in function arguments")
	ErrTimeout         = errors.New("operation timed out")
	ErrInvalidState    = errors.New("driver not ready")
	ErrFrameTooLarge   = errors.New("frame exceeds maximum ethernet payload")
	ErrIndexInUse      = errors.New("datagram index already has a pending exchange")
	ErrNoBus           = errors.New("no bus attached, connect first")
)
