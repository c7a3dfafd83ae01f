package prober

import (
	"context"
	"errors"
	"net/netip"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"pingmonitor/internal/models"
)

var rttPattern = regexp.MustCompile(`time[=<]\s*(\d+(?:\.\d+)?)\s*ms`)

// Exec runs the system ping binary for one echo request.
type Exec struct {
	// Path to the ping binary; "ping" from PATH when empty.
	Path string
	// GOOS selects the flag dialect; runtime.GOOS when empty.
	GOOS string
}

// Probe implements Prober.
func (p *Exec) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	path := p.Path
	if path == "" {
		path = "ping"
	}

	cmd := exec.CommandContext(ctx, path, p.args(addr, timeout)...)
	output, err := cmd.Output()
	if ctx.Err() != nil {
		return contextFailure(ctx, addr)
	}
	if rtt, ok := ParseRTT(string(output)); ok {
		return success(rtt)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return failure(ErrTransport, "ping %s: unrecognised output", addr)
	case errors.As(err, &exitErr):
		// ping exits non-zero when no reply arrived.
		return failure(ErrTimeout, "ping %s exited with %d", addr, exitErr.ExitCode())
	default:
		return failure(ErrTransport, "run %s: %v", path, err)
	}
}

func (p *Exec) args(addr netip.Addr, timeout time.Duration) []string {
	goos := p.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	var wait string
	switch goos {
	case "darwin", "freebsd", "netbsd", "openbsd":
		// BSD -W takes milliseconds.
		wait = strconv.FormatInt(timeout.Milliseconds(), 10)
	default:
		secs := int64((timeout + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		wait = strconv.FormatInt(secs, 10)
	}
	return []string{"-c", "1", "-W", wait, "-n", addr.String()}
}

// ParseRTT extracts the first round-trip time from ping output.
func ParseRTT(output string) (time.Duration, bool) {
	match := rttPattern.FindStringSubmatch(output)
	if len(match) < 2 {
		return 0, false
	}
	ms, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}
