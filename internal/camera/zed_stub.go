//go:build !zed

package camera

import "errors"

// NewHardware reports that camera support was not compiled in; the
// streamer serves the synthetic feed every cycle.
func NewHardware(_ int) (Hardware, error) {
	return nil, errors.New("zed support not enabled; build with -tags zed")
}
