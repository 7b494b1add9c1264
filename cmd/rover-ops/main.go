package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rover-ops-go/internal/camera"
	"rover-ops-go/internal/config"
	"rover-ops-go/internal/encode"
	"rover-ops-go/internal/server"
	"rover-ops-go/internal/slam"
	"rover-ops-go/internal/telemetry"
	"rover-ops-go/internal/teleop"
)

const defaultSlamCommand = "source /opt/ros/humble/setup.bash && " +
	"source /home/robotsailor/helios_ws/install/setup.bash && " +
	"ros2 launch helios_bringup helios_slam.launch.py use_rviz:=false"

func main() {
	var (
		port           = flag.Int("port", 8000, "HTTP port for the operator UI")
		configPath     = flag.String("config", "", "Optional YAML config file; file values override flags")
		frameInterval  = flag.Duration("frame-interval", 12500*time.Microsecond, "Target period between capture cycles")
		telemetryRate  = flag.Duration("telemetry-interval", time.Second, "Period between telemetry pushes")
		maxWidth       = flag.Int("max-width", 960, "Maximum streamed frame width in pixels")
		quality        = flag.Int("quality", 82, "JPEG quality for streamed frames")
		cameraDevice   = flag.Int("camera-device", 0, "Video capture device index")
		thermalRoot    = flag.String("thermal-root", telemetry.DefaultThermalRoot, "Root of the sysfs thermal zones")
		slamCommand    = flag.String("slam-cmd", defaultSlamCommand, "Command launching the SLAM stack")
		cmdVelEndpoint = flag.String("cmdvel-endpoint", "tcp://*:5557", "ZMQ endpoint for the cmd_vel publisher")
		linearSpeed    = flag.Float64("linear-speed", 0.3, "Teleop linear speed (m/s)")
		angularSpeed   = flag.Float64("angular-speed", 0.8, "Teleop angular speed (rad/s)")
	)
	flag.Parse()

	cfg := config.AppConfig{
		Port:              *port,
		FrameInterval:     config.Duration(*frameInterval),
		TelemetryInterval: config.Duration(*telemetryRate),
		MaxStreamWidth:    *maxWidth,
		JPEGQuality:       *quality,
		CameraDevice:      *cameraDevice,
		ThermalRoot:       *thermalRoot,
		SlamCommand:       *slamCommand,
		CmdVelEndpoint:    *cmdVelEndpoint,
		LinearSpeed:       *linearSpeed,
		AngularSpeed:      *angularSpeed,
	}
	if *configPath != "" {
		if err := config.Load(*configPath, &cfg); err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamer := camera.NewStreamer(camera.Config{
		Interval: time.Duration(cfg.FrameInterval),
		Device:   cfg.CameraDevice,
		Encode: encode.Options{
			Format:   "jpeg",
			Quality:  cfg.JPEGQuality,
			MaxWidth: cfg.MaxStreamWidth,
		},
	})
	streamer.Start()

	supervisor := slam.New(cfg.SlamCommand)

	var sink teleop.Sink
	if s, err := teleop.NewSink(cfg.CmdVelEndpoint); err != nil {
		log.Printf("cmd_vel bridge unavailable: %v", err)
	} else {
		sink = s
		log.Printf("cmd_vel publisher bound at %s", cfg.CmdVelEndpoint)
	}

	log.Printf("rover ops backend listening on :%d", cfg.Port)
	if err := server.Run(ctx, cfg, streamer, supervisor, sink); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server stopped: %v", err)
	}

	// Shutdown order: capture loop first, then the SLAM process, then the
	// remaining handles. Every step runs even if an earlier one failed.
	streamer.Close()
	supervisor.Stop()
	if sink != nil {
		sink.Close()
	}
}
