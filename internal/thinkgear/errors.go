package thinkgear

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksum reports a structurally complete small frame whose trailing
	// checksum does not match its payload.
	ErrChecksum = errors.New("thinkgear: checksum mismatch")
	// ErrBufferOverflow reports that unresolved bytes exceeded the buffer cap
	// and the buffer was cleared.
	ErrBufferOverflow = errors.New("thinkgear: frame buffer overflow")
	// ErrFrameLength reports a window whose size does not match its layout.
	ErrFrameLength = errors.New("thinkgear: wrong frame length")
	// ErrUnknownKind reports a discriminator matching no known layout.
	ErrUnknownKind = errors.New("thinkgear: unknown packet kind")
)

// ChecksumError carries the computed and received checksum of a rejected
// small frame. It matches ErrChecksum with errors.Is.
type ChecksumError struct {
	Expected byte
	Got      byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("thinkgear: checksum mismatch: computed 0x%02X, frame carries 0x%02X", e.Expected, e.Got)
}

func (e *ChecksumError) Is(target error) bool { return target == ErrChecksum }
