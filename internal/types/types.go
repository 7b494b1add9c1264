package types

import "time"

// Frame is one encoded camera image plus source metadata, pushed to the UI
// over the video websocket. Frames are replaced wholesale each capture
// cycle and handed to readers by value.
type Frame struct {
	Timestamp string `json:"timestamp"`
	RGB       string `json:"rgb"`
	// Depth is kept for UI compatibility but never populated; depth
	// retrieval is disabled in this pipeline.
	Depth   string `json:"depth"`
	Source  string `json:"source"`
	Status  string `json:"status"`
	Profile string `json:"profile"`
}

type EncoderCounts struct {
	FrontLeft  int `json:"frontLeft"`
	FrontRight int `json:"frontRight"`
	RearLeft   int `json:"rearLeft"`
	RearRight  int `json:"rearRight"`
}

type JetsonTemps struct {
	CPUTemp float64 `json:"cpuTemp"`
	GPUTemp float64 `json:"gpuTemp"`
}

type PowerState struct {
	Voltage float64 `json:"voltage"`
	SOC     float64 `json:"soc"`
}

type MotorState struct {
	TorqueOzIn   float64 `json:"torqueOzIn"`
	SpeedRPM     float64 `json:"speedRpm"`
	CurrentMA    float64 `json:"currentMa"`
	OutputPowerW float64 `json:"outputPowerW"`
	InputPowerW  float64 `json:"inputPowerW"`
	Efficiency   float64 `json:"efficiency"`
}

// TelemetrySample is one snapshot of synthesized or real sensor values.
type TelemetrySample struct {
	Timestamp string        `json:"timestamp"`
	Encoders  EncoderCounts `json:"encoders"`
	Jetson    JetsonTemps   `json:"jetson"`
	Power     PowerState    `json:"power"`
	Motor     MotorState    `json:"motor"`
}

// Timestamp renders the current UTC time the way the UI expects it:
// RFC3339 with a trailing Z.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
