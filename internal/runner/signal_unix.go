//go:build !windows

package runner

import (
	"os"
	"syscall"
)

// sendInterrupt raises SIGINT for this process.
func sendInterrupt() {
	_ = syscall.Kill(os.Getpid(), syscall.SIGINT)
}
