package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"airshift/internal/config"
	"airshift/internal/services/radiko"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckAuthService verifies that the replay service's token handshake works
// from this host. A single attempt with a short timeout; no retries.
func CheckAuthService(ctx context.Context, cfg *config.Config) Result {
	const name = "Replay service auth"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client := radiko.NewAuthClient(10 * time.Second)
	capability, err := client.Authorize(checkCtx, cfg.Radiko.AreaID)
	if err != nil {
		return Result{Name: name, Detail: summarizeAuthError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("authorized for area %s", capability.AreaID)}
}

func summarizeAuthError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "handshake timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "handshake timed out (service unreachable)"
	}
	if errors.Is(err, radiko.ErrAuthRejected) {
		return "handshake rejected (region restriction or key mismatch)"
	}
	return err.Error()
}
