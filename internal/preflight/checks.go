package preflight

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"tipflow/internal/config"
)

// CheckDirectoryAccess verifies that path is a directory the process can
// read, write, and traverse.
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

// CheckIntegrations verifies that every vendor credential is configured.
func CheckIntegrations(cfg *config.Config) Result {
	const name = "Integrations"
	if err := cfg.ValidateIntegrations(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "content store, video host, and transcription configured"}
}

// CheckBroker verifies that the AMQP endpoint accepts TCP connections. It
// uses a 5-second timeout and does not authenticate.
func CheckBroker(ctx context.Context, rawURL string) Result {
	const name = "Broker"

	address, err := brokerAddress(rawURL)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable: %v", address, err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", address)}
}

func brokerAddress(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("missing url")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid url: %v", err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", trimmed)
	}
	port := parsed.Port()
	if port == "" {
		switch parsed.Scheme {
		case "amqps":
			port = "5671"
		case "amqp":
			port = "5672"
		default:
			return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
		}
	}
	return net.JoinHostPort(parsed.Hostname(), port), nil
}
