// Package teleop maps operator direction commands onto velocity pairs and
// publishes them to the rover's motion stack over ZMQ.
package teleop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
)

// Twist mirrors the geometry_msgs/Twist layout the motion stack consumes.
type Twist struct {
	Linear  Vector3 `cbor:"linear" json:"linear"`
	Angular Vector3 `cbor:"angular" json:"angular"`
}

type Vector3 struct {
	X float64 `cbor:"x" json:"x"`
	Y float64 `cbor:"y" json:"y"`
	Z float64 `cbor:"z" json:"z"`
}

// Speeds are the tuned magnitudes applied to mapped directions.
type Speeds struct {
	Linear  float64 // m/s forward/backward
	Angular float64 // rad/s for spin / skid-steer turns
}

var ErrUnknownDirection = errors.New("unknown direction")

// Map translates a direction command into a velocity pair. The direction
// set is closed; anything else is rejected and nothing gets published.
func Map(direction string, speeds Speeds) (Twist, error) {
	var msg Twist
	switch direction {
	case "forward":
		msg.Linear.X = speeds.Linear
	case "backward":
		msg.Linear.X = -speeds.Linear
	case "left":
		msg.Angular.Z = speeds.Angular
	case "right":
		msg.Angular.Z = -speeds.Angular
	case "stop":
		// all zeros
	default:
		return Twist{}, fmt.Errorf("%w %q", ErrUnknownDirection, direction)
	}
	return msg, nil
}

// Sink accepts velocity commands for vehicle actuation.
type Sink interface {
	Publish(msg Twist) error
	Close()
}

const cmdVelTopic = "cmd_vel"

// zmqSink publishes CBOR-encoded Twist messages on a PUB socket, one
// topic frame followed by the payload.
type zmqSink struct {
	mu     sync.Mutex
	socket *zmq4.Socket
}

// NewSink binds the cmd_vel publisher. Callers treat a construction error
// as "motion sink unavailable" and keep running without one.
func NewSink(endpoint string) (Sink, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("cmd_vel socket: %w", err)
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("cmd_vel bind %s: %w", endpoint, err)
	}
	return &zmqSink{socket: socket}, nil
}

func (s *zmqSink) Publish(msg Twist) error {
	payload, err := cbor.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.socket.SendBytes([]byte(cmdVelTopic), zmq4.SNDMORE); err != nil {
		return err
	}
	_, err = s.socket.SendBytes(payload, 0)
	return err
}

func (s *zmqSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.socket.Close()
}
