package camera

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"rover-ops-go/internal/encode"
	"rover-ops-go/internal/types"
)

const (
	mockWidth  = 960
	mockHeight = 540
)

// synthetic renders a continuously animated RGB gradient as a function of
// wall-clock elapsed time, so a mock feed is obvious at a glance and
// visibly changes frame to frame.
type synthetic struct {
	start time.Time
}

func newSynthetic() *synthetic {
	return &synthetic{start: time.Now()}
}

// Frame produces one mock frame. status carries the hardware diagnostic
// that forced the fallback; empty means the mock feed is the normal path.
func (s *synthetic) Frame(opts encode.Options, status string) types.Frame {
	t := time.Since(s.start).Seconds()

	img := image.NewRGBA(image.Rect(0, 0, mockWidth, mockHeight))
	for y := 0; y < mockHeight; y++ {
		yv := float64(y) / (mockHeight - 1)
		g := channel(0.5 + 0.5*math.Sin(2*math.Pi*(yv+t*0.17)))
		for x := 0; x < mockWidth; x++ {
			xv := float64(x) / (mockWidth - 1)
			r := channel(0.6 + 0.4*math.Sin(2*math.Pi*(xv+t*0.1)))
			b := channel(0.45 + 0.5*math.Sin(2*math.Pi*(xv+yv+t*0.07)))
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
		}
	}

	rgb, _ := encode.Frame(img, opts)
	if status == "" {
		status = "mock-feed"
	}
	return types.Frame{
		Timestamp: types.Timestamp(),
		RGB:       rgb,
		Source:    "mock",
		Status:    status,
		Profile:   fmt.Sprintf("mock %dx%d", mockWidth, mockHeight),
	}
}

func channel(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}
