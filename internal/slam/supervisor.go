// Package slam supervises the external SLAM launch as a single managed
// process tree: start, status, and graceful-then-forceful stop.
package slam

import (
	"fmt"
	"log"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	StateRunning = "running"
	StateStopped = "stopped"

	gracefulWait = 5 * time.Second
)

// Supervisor owns at most one live SLAM process. All access to the handle
// is serialized by mu so concurrent start/stop/status calls cannot race.
type Supervisor struct {
	command string
	timeout time.Duration

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

func New(command string) *Supervisor {
	return &Supervisor{command: command, timeout: gracefulWait}
}

// Start spawns the SLAM command in its own process group so its children
// die with it. A live process is reused, never duplicated; stdout/stderr
// are discarded.
func (s *Supervisor) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live() {
		return StateRunning, nil
	}
	s.clear()

	cmd := exec.Command("bash", "-lc", s.command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return StateStopped, fmt.Errorf("start slam: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	s.cmd = cmd
	s.exited = exited
	log.Printf("slam: started (pid %d)", cmd.Process.Pid)
	return StateRunning, nil
}

// Stop terminates the whole process group: graceful signal, bounded wait,
// forceful kill. The tracked handle is always cleared afterward so the
// supervisor cannot wedge on an unkillable process.
func (s *Supervisor) Stop() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.clear()

	if !s.live() {
		return StateStopped
	}

	pgid, err := syscall.Getpgid(s.cmd.Process.Pid)
	if err != nil {
		// Process group already gone; fall back to the tracked handle.
		_ = s.cmd.Process.Kill()
		return StateStopped
	}

	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	select {
	case <-s.exited:
	case <-time.After(s.timeout):
		log.Printf("slam: no exit %v after SIGTERM, killing process group %d", s.timeout, pgid)
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}
	return StateStopped
}

// Status reports the process state without spawning or killing anything.
func (s *Supervisor) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live() {
		return StateRunning
	}
	return StateStopped
}

// live reports whether the tracked process exists and has not exited.
// Callers hold mu.
func (s *Supervisor) live() bool {
	if s.cmd == nil {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

func (s *Supervisor) clear() {
	s.cmd = nil
	s.exited = nil
}
