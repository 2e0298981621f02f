//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// detach is a no-op: Windows has no session to leave.
func detach(_ *exec.Cmd) {}

// stopSignals end a foreground server gracefully.
func stopSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// Both map to a kill in daemon.PIDFile.Signal.
func termSignal() syscall.Signal { return syscall.SIGTERM }

func killSignal() syscall.Signal { return syscall.SIGKILL }
