package core

import (
	"errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrFrameSkipped     = errors.New("frame skipped, in-flight fence not signaled in time")
	ErrUnknown          = errors.New("unknown")
)

// IsFrameNotReady reports whether err only means that the current tick could not
// produce a frame and the caller should simply try again on the next one.
func IsFrameNotReady(err error) bool {
	return errors.Is(err, ErrSwapchainBooting) || errors.Is(err, ErrFrameSkipped)
}
