package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jitterless(t *testing.T) *Synthesizer {
	t.Helper()
	s := NewSynthesizer(t.TempDir()) // empty root: no thermal zones
	s.Jitter = false
	return s
}

func TestSampleDeterministicWithoutJitter(t *testing.T) {
	a := jitterless(t)
	b := jitterless(t)

	for tick := 0; tick <= 200; tick += 7 {
		sa := a.Sample(tick)
		sb := b.Sample(tick)
		// Timestamps are wall-clock; everything else must match.
		sa.Timestamp = ""
		sb.Timestamp = ""
		assert.Equal(t, sa, sb, "tick %d", tick)
	}
}

func TestSampleCurvesStayInRange(t *testing.T) {
	s := jitterless(t)
	for tick := 0; tick < 5000; tick++ {
		sample := s.Sample(tick)
		assert.GreaterOrEqual(t, sample.Motor.Efficiency, 0.0)
		assert.LessOrEqual(t, sample.Motor.Efficiency, 100.0)
		assert.GreaterOrEqual(t, sample.Power.SOC, 0.0)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestSampleCurvesContinuousAcrossTicks(t *testing.T) {
	s := jitterless(t)

	// Bounds follow from each curve's amplitude and period plus the
	// integer truncation / decimal rounding applied to the field.
	prev := s.Sample(0)
	for tick := 1; tick < 1000; tick++ {
		cur := s.Sample(tick)

		assert.LessOrEqual(t, absInt(cur.Encoders.FrontLeft-prev.Encoders.FrontLeft), 2, "frontLeft tick %d", tick)
		assert.LessOrEqual(t, absInt(cur.Encoders.FrontRight-prev.Encoders.FrontRight), 2, "frontRight tick %d", tick)
		assert.LessOrEqual(t, absInt(cur.Encoders.RearLeft-prev.Encoders.RearLeft), 2, "rearLeft tick %d", tick)
		assert.LessOrEqual(t, absInt(cur.Encoders.RearRight-prev.Encoders.RearRight), 2, "rearRight tick %d", tick)

		assert.InDelta(t, prev.Jetson.CPUTemp, cur.Jetson.CPUTemp, 0.5, "cpuTemp tick %d", tick)
		assert.InDelta(t, prev.Jetson.GPUTemp, cur.Jetson.GPUTemp, 0.5, "gpuTemp tick %d", tick)

		assert.InDelta(t, prev.Power.Voltage, cur.Power.Voltage, 0.02, "voltage tick %d", tick)
		assert.InDelta(t, prev.Power.SOC, cur.Power.SOC, 0.15, "soc tick %d", tick)

		assert.InDelta(t, prev.Motor.TorqueOzIn, cur.Motor.TorqueOzIn, 0.5, "torque tick %d", tick)
		assert.InDelta(t, prev.Motor.SpeedRPM, cur.Motor.SpeedRPM, 3.0, "speed tick %d", tick)
		assert.InDelta(t, prev.Motor.CurrentMA, cur.Motor.CurrentMA, 7.0, "current tick %d", tick)
		assert.InDelta(t, prev.Motor.OutputPowerW, cur.Motor.OutputPowerW, 0.15, "outputPower tick %d", tick)
		assert.InDelta(t, prev.Motor.InputPowerW, cur.Motor.InputPowerW, 0.2, "inputPower tick %d", tick)
		assert.InDelta(t, prev.Motor.Efficiency, cur.Motor.Efficiency, 5.0, "efficiency tick %d", tick)

		prev = cur
	}
}

func TestEfficiencyClamp(t *testing.T) {
	assert.Equal(t, 0.0, Efficiency(5, 0), "zero input power must not divide")
	assert.Equal(t, 1.0, Efficiency(5, 2), "clamped above")
	assert.Equal(t, 0.0, Efficiency(-1, 2), "clamped below")
	assert.InDelta(t, 0.5, Efficiency(1, 2), 1e-9)
}

func writeZone(t *testing.T, root, name, zoneType, temp string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "type"), []byte(zoneType+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "temp"), []byte(temp+"\n"), 0o644))
}

func TestReadThermalZone(t *testing.T) {
	root := t.TempDir()
	writeZone(t, root, "thermal_zone0", "gpu-thermal", "51250")
	writeZone(t, root, "thermal_zone1", "cpu-thermal", "45500")

	cpu, ok := ReadThermalZone(root, "cpu-thermal")
	require.True(t, ok)
	assert.InDelta(t, 45.5, cpu, 1e-9)

	_, ok = ReadThermalZone(root, "pmic-thermal")
	assert.False(t, ok)
}

func TestSampleUsesRealThermalZones(t *testing.T) {
	root := t.TempDir()
	writeZone(t, root, "thermal_zone0", "cpu-thermal", "45500")

	s := NewSynthesizer(root)
	s.Jitter = false
	sample := s.Sample(0)
	assert.InDelta(t, 45.5, sample.Jetson.CPUTemp, 1e-9)
	// GPU zone absent: sinusoidal fallback at tick 0.
	assert.InDelta(t, 60.5, sample.Jetson.GPUTemp, 1e-9)
}

func TestThermalReadFailureFallsBack(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "thermal_zone0")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "type"), []byte("cpu-thermal\n"), 0o644))
	// No temp file: the read must degrade, not raise.

	_, ok := ReadThermalZone(root, "cpu-thermal")
	assert.False(t, ok)

	s := NewSynthesizer(root)
	s.Jitter = false
	assert.InDelta(t, 60.0, s.Sample(0).Jetson.CPUTemp, 1e-9)
}
