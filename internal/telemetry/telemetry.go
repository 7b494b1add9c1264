// Package telemetry synthesizes per-tick sensor samples for the UI. All
// curves are pure functions of the tick counter; thermal readings come
// from the Jetson's sysfs zones when present.
package telemetry

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rover-ops-go/internal/types"
)

const DefaultThermalRoot = "/sys/devices/virtual/thermal"

// Synthesizer produces one telemetry sample per tick. Jitter is the only
// randomness and can be disabled for reproducible output. A Synthesizer is
// not safe for concurrent use; each telemetry connection owns its own.
type Synthesizer struct {
	ThermalRoot string
	Jitter      bool
	rng         *rand.Rand
}

func NewSynthesizer(thermalRoot string) *Synthesizer {
	if thermalRoot == "" {
		thermalRoot = DefaultThermalRoot
	}
	return &Synthesizer{
		ThermalRoot: thermalRoot,
		Jitter:      true,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sample synthesizes the telemetry snapshot for one tick.
func (s *Synthesizer) Sample(tick int) types.TelemetrySample {
	t := float64(tick)

	torque := 10 + 3*math.Sin(t/9)
	speed := 260 + 20*math.Cos(t/8)
	current := 250 + 40*math.Sin(t/6)
	outputPower := 0.00074 * torque * speed
	inputPower := current / 1000 * 24

	voltage := 24.5 - 0.002*t + s.jitterFloat(0.05)
	soc := 85 - 0.02*t + s.jitterFloat(0.2)
	if soc < 0 {
		soc = 0
	}

	return types.TelemetrySample{
		Timestamp: types.Timestamp(),
		Encoders: types.EncoderCounts{
			FrontLeft:  120 + int(5*math.Sin(t/5)) + s.jitterInt(2),
			FrontRight: 118 + int(4*math.Cos(t/4)) + s.jitterInt(2),
			RearLeft:   115 + int(3*math.Sin(t/6)) + s.jitterInt(2),
			RearRight:  117 + int(4*math.Cos(t/7)) + s.jitterInt(2),
		},
		Jetson: s.jetsonTemps(tick),
		Power: types.PowerState{
			Voltage: round(voltage, 2),
			SOC:     round(soc, 1),
		},
		Motor: types.MotorState{
			TorqueOzIn:   round(torque, 2),
			SpeedRPM:     round(speed, 1),
			CurrentMA:    round(current, 1),
			OutputPowerW: round(outputPower, 3),
			InputPowerW:  round(inputPower, 3),
			Efficiency:   round(Efficiency(outputPower, inputPower)*100, 2),
		},
	}
}

// jetsonTemps reads the real thermal zones when available and falls back
// to slowly drifting sinusoids when they are not.
func (s *Synthesizer) jetsonTemps(tick int) types.JetsonTemps {
	t := float64(tick)
	cpu, ok := ReadThermalZone(s.ThermalRoot, "cpu-thermal")
	if !ok {
		cpu = 60 + 3*math.Sin(t/12)
	}
	gpu, ok := ReadThermalZone(s.ThermalRoot, "gpu-thermal")
	if !ok {
		gpu = 58 + 2.5*math.Cos(t/10)
	}
	return types.JetsonTemps{CPUTemp: round(cpu, 1), GPUTemp: round(gpu, 1)}
}

// Efficiency is output over input power clamped to [0, 1]. Zero input
// power yields zero rather than a division fault.
func Efficiency(outputW, inputW float64) float64 {
	if inputW == 0 {
		return 0
	}
	eff := outputW / inputW
	if eff < 0 {
		return 0
	}
	if eff > 1 {
		return 1
	}
	return eff
}

// ReadThermalZone scans the sysfs thermal zones under root for the given
// zone type and returns its temperature in °C. Any read failure reports
// absence, never an error.
func ReadThermalZone(root, zoneType string) (float64, bool) {
	zones, err := filepath.Glob(filepath.Join(root, "thermal_zone*"))
	if err != nil {
		return 0, false
	}
	for _, zone := range zones {
		name, err := os.ReadFile(filepath.Join(zone, "type"))
		if err != nil || strings.TrimSpace(string(name)) != zoneType {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(zone, "temp"))
		if err != nil {
			continue
		}
		milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			continue
		}
		return milli / 1000, true
	}
	return 0, false
}

func (s *Synthesizer) jitterInt(n int) int {
	if !s.Jitter {
		return 0
	}
	return s.rng.Intn(2*n+1) - n
}

func (s *Synthesizer) jitterFloat(amp float64) float64 {
	if !s.Jitter {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * amp
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
