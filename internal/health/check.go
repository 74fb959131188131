package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"syscall"
	"time"
)

type HttpHealthCheck struct {
	Method string
	Url    string
}

func CheckHttp(healthCheck HttpHealthCheck) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, healthCheck.Method, healthCheck.Url, nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	// Non-200 status codes are fine, because we still got a response from an
	// http server
	return true
}

type TcpHealthCheck struct {
	Host string
	Port int
}

func CheckTcp(healthCheck TcpHealthCheck) bool {
	host := healthCheck.Host
	if host == "" {
		host = "localhost"
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprint(healthCheck.Port)), 5*time.Second)
	if err != nil {
		return false
	}
	conn.Close()

	return true
}

// WaitFor polls check until it passes or ctx is done.
func WaitFor(ctx context.Context, interval time.Duration, check func() bool) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if check() {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func PidIsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// TODO: check the actual error, it might've been a permission error
	// or something else.
	osProcess, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// `Release` closes the underlying handle on Windows. On unix it's
	// essentially a no-op.
	defer osProcess.Release()

	// On windows, if we located a process, it's alive.
	// On other platforms, we only have a handle, and need to send a signal
	// to see if it's alive.
	if runtime.GOOS == "windows" {
		return true
	}

	return osProcess.Signal(syscall.Signal(0)) == nil
}
