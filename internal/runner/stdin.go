package runner

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/maxvaer/smugprobe/internal/transport"
)

// startStdinToggle reads single keypresses from stdin and toggles the
// returned pauser on Enter or Space. The pauser blocks the next probe, not
// the one in flight. cleanup restores the terminal. If stdin is not a
// terminal it returns a nil pauser and a no-op cleanup.
func startStdinToggle(w io.Writer, quiet bool) (pauser *transport.Pauser, cleanup func()) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return nil, func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		if !quiet {
			fmt.Fprintf(w, "[!] Could not enable raw terminal: %v\n", err)
		}
		return nil, func() {}
	}

	// MakeRaw also disables OPOST, which breaks \n -> \r\n on output.
	fixOutputProcessing(fd)

	pauser = transport.NewPauser()
	cleanup = func() {
		_ = term.Restore(fd, oldState)
	}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}

			switch key := buf[0]; key {
			case 0x03:
				// Ctrl+C: restore the terminal and raise SIGINT so the
				// signal context cancels the scan.
				_ = term.Restore(fd, oldState)
				sendInterrupt()
				return
			case '\r', '\n', ' ':
				nowPaused := pauser.Toggle()
				if quiet {
					continue
				}
				if nowPaused {
					fmt.Fprintf(w, "\r\033[K[*] Scan PAUSED, press Enter or Space to resume\n")
				} else {
					fmt.Fprintf(w, "\r\033[K[*] Scan RESUMED (paused %s total)\n", pauser.PausedDuration().Round(time.Second))
				}
			}
		}
	}()

	return pauser, cleanup
}
