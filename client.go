package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"streamedit/logger"
)

const (
	daemonStartTimeout = 5 * time.Second
	daemonPollInterval = 100 * time.Millisecond
)

// Client relays the editor's stdio to the daemon socket, starting the
// daemon first when none is running
type Client struct {
	socketPath string
	pidPath    string
	configPath string
}

func NewClient(configPath string) *Client {
	return &Client{
		socketPath: getSocketPath(),
		pidPath:    getPidPath(),
		configPath: configPath,
	}
}

func (c *Client) Connect() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		io.Copy(conn, os.Stdin)
		// nvim closed stdin; let the daemon see EOF
		if uc, ok := conn.(*net.UnixConn); ok {
			uc.CloseWrite()
		} else {
			conn.Close()
		}
	}()

	_, err = io.Copy(os.Stdout, conn)
	return err
}

// dial retries while a freshly started daemon is still binding its socket
func (c *Client) dial() (net.Conn, error) {
	deadline := time.Now().Add(daemonStartTimeout)
	for {
		conn, err := net.Dial("unix", c.socketPath)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("dial %s: %w", c.socketPath, err)
		}
		time.Sleep(daemonPollInterval)
	}
}

func (c *Client) EnsureDaemonRunning() error {
	if running, pid := isDaemonRunning(); running {
		logger.Debug("daemon already running with PID %d", pid)
		return nil
	}

	// A dead daemon leaves its pid file behind
	if err := os.Remove(c.pidPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove stale pid file: %v", err)
	}
	return c.startDaemon()
}

func (c *Client) startDaemon() error {
	logger.Debug("starting daemon...")

	args := []string{"--daemon"}
	if c.configPath != "" {
		args = append(args, "--config", c.configPath)
	}

	// The environment carries STREAMEDIT_CONFIG through to the daemon
	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	// The daemon outlives this process
	if err := cmd.Process.Release(); err != nil {
		logger.Debug("release daemon process: %v", err)
	}

	return c.waitForDaemon()
}

func (c *Client) waitForDaemon() error {
	deadline := time.Now().Add(daemonStartTimeout)
	for time.Now().Before(deadline) {
		if running, _ := isDaemonRunning(); running {
			logger.Debug("daemon started successfully")
			return nil
		}
		time.Sleep(daemonPollInterval)
	}
	return fmt.Errorf("daemon failed to start within %v", daemonStartTimeout)
}
