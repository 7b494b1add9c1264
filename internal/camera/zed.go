//go:build zed

package camera

import (
	"fmt"

	"gocv.io/x/gocv"

	"rover-ops-go/internal/encode"
	"rover-ops-go/internal/types"
)

// Capture profiles tried in order on first open. High FPS is preferred;
// frames are downscaled to MaxWidth before streaming anyway.
var zedProfiles = []struct {
	width, height, fps int
}{
	{1280, 720, 60},
	{1920, 1080, 60},
	{1280, 720, 30},
	{1920, 1080, 30},
}

type zedCamera struct {
	device  int
	cap     *gocv.VideoCapture
	mat     gocv.Mat
	profile string
}

func NewHardware(device int) (Hardware, error) {
	return &zedCamera{device: device, mat: gocv.NewMat()}, nil
}

// ensureOpen opens the device on first use, walking the profile ladder
// until the driver accepts one. An already-open device is reused.
func (z *zedCamera) ensureOpen() error {
	if z.cap != nil {
		return nil
	}
	vc, err := gocv.OpenVideoCapture(z.device)
	if err != nil {
		return fmt.Errorf("failed to open ZED camera: %w", err)
	}
	for _, p := range zedProfiles {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(p.width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(p.height))
		vc.Set(gocv.VideoCaptureFPS, float64(p.fps))
		if int(vc.Get(gocv.VideoCaptureFrameWidth)) == p.width &&
			int(vc.Get(gocv.VideoCaptureFrameHeight)) == p.height {
			z.cap = vc
			z.profile = fmt.Sprintf("%dx%d@%dfps", p.width, p.height, p.fps)
			return nil
		}
	}
	_ = vc.Close()
	return fmt.Errorf("failed to open ZED camera: no supported capture profile")
}

func (z *zedCamera) Grab(opts encode.Options) (types.Frame, error) {
	if err := z.ensureOpen(); err != nil {
		return types.Frame{}, err
	}
	if ok := z.cap.Read(&z.mat); !ok || z.mat.Empty() {
		return types.Frame{}, fmt.Errorf("failed to grab frame from ZED")
	}
	// ToImage reorders the driver's BGR layout to RGB before encoding.
	img, err := z.mat.ToImage()
	if err != nil {
		return types.Frame{}, fmt.Errorf("convert frame: %w", err)
	}
	rgb, _ := encode.Frame(img, opts)
	return types.Frame{
		Timestamp: types.Timestamp(),
		RGB:       rgb,
		Source:    "zed",
		Status:    "live",
		Profile:   z.profile,
	}, nil
}

func (z *zedCamera) Close() {
	if z.cap != nil {
		_ = z.cap.Close()
		z.cap = nil
	}
	_ = z.mat.Close()
}
