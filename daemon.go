package main

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"streamedit/buffer"
	"streamedit/engine"
	"streamedit/metrics"
	"streamedit/provider"
	"streamedit/types"

	"github.com/neovim/go-client/nvim"
)

// Compile-time check that the nvim buffer can drive the engine
var _ engine.Editor = (*buffer.NvimBuffer)(nil)

type Daemon struct {
	config      Config
	engine      *engine.Engine
	tracker     *metrics.Tracker
	listener    net.Listener
	socketPath  string
	pidPath     string
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewDaemon(config Config) (*Daemon, error) {
	prov := provider.New(&types.ProviderConfig{
		ProviderURL:         config.ProviderURL,
		APIKey:              config.APIKey,
		ProviderModel:       config.ProviderModel,
		ProviderTemperature: config.ProviderTemperature,
		ProviderMaxTokens:   config.ProviderMaxTokens,
		MaxContextTokens:    config.MaxContextTokens,
		CompletionPath:      config.CompletionPath,
		CompressRequests:    config.CompressRequests,
		CompletionTimeout:   config.CompletionTimeout,
		HistoryTurns:        config.HistoryTurns,
	})

	tracker := metrics.NewTracker(config.MetricsURL, config.APIKey, config.EditorInfo, execDir())

	eng, err := engine.NewEngine(prov, nil, engineConfig(config), engine.SystemClock, tracker)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		config:     config,
		engine:     eng,
		tracker:    tracker,
		socketPath: getSocketPath(),
		pidPath:    getPidPath(),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func engineConfig(config Config) engine.EngineConfig {
	return engine.EngineConfig{
		CompletionTimeout:  time.Duration(config.CompletionTimeout) * time.Millisecond,
		HighlightDebounce:  time.Duration(config.HighlightDebounce) * time.Millisecond,
		WaitingHintDelay:   time.Duration(config.WaitingHintDelay) * time.Millisecond,
		LockWhileStreaming: config.LockWhileStreaming,
	}
}

func (d *Daemon) Start() error {
	d.writePidFile()
	defer d.removePidFile()

	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	log.Printf("daemon listening on socket: %s", d.socketPath)

	d.engine.Start(d.ctx)

	d.setupShutdownHandling()

	go d.acceptConnections()

	go d.monitorIdleShutdown()

	<-d.ctx.Done()
	log.Printf("daemon shutting down...")
	return nil
}

func (d *Daemon) setupSocket() error {
	// Remove existing socket
	os.Remove(d.socketPath)

	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return err
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("received shutdown signal")
		d.Stop()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				return // Server is shutting down
			default:
				log.Printf("error accepting connection: %v", err)
				continue
			}
		}

		atomic.AddInt64(&d.clientCount, 1)
		log.Printf("new client connected, total clients: %d", atomic.LoadInt64(&d.clientCount))
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		atomic.AddInt64(&d.clientCount, -1)
		log.Printf("client disconnected, remaining clients: %d", atomic.LoadInt64(&d.clientCount))
	}()

	n, err := nvim.New(conn, conn, conn, log.Printf)
	if err != nil {
		log.Printf("error creating nvim client: %v", err)
		return
	}

	buf := buffer.New(buffer.Config{NsID: d.config.NsID})
	buf.SetClient(n)
	if err := buf.RegisterHandlers(buffer.Handlers{
		Submit: d.engine.Submit,
		Event:  d.engine.HandleEditorEvent,
	}); err != nil {
		log.Printf("error registering handlers: %v", err)
		return
	}

	served := make(chan error, 1)
	go func() { served <- n.Serve() }()

	// RPC calls need the connection served
	if d.config.NsID == 0 {
		ns, err := n.CreateNamespace(d.config.Namespace)
		if err != nil {
			log.Printf("error creating namespace %q: %v", d.config.Namespace, err)
		} else {
			buf.SetNamespace(ns)
		}
	}
	d.engine.SetEditor(buf)

	select {
	case <-d.ctx.Done():
		return
	case err := <-served:
		if err != nil && err != io.EOF {
			log.Printf("error serving connection: %v", err)
		}
	}
}

// monitorIdleShutdown stops the daemon once no editor has been connected for
// the idle timeout. Debug mode uses a one second timeout.
func (d *Daemon) monitorIdleShutdown() {
	timeout := time.Duration(d.config.IdleShutdown) * time.Millisecond
	if d.config.DebugImmediateShutdown {
		timeout = time.Second
	}

	ticker := time.NewTicker(min(timeout, time.Second))
	defer ticker.Stop()

	idleSince := time.Now()
	for {
		select {
		case <-d.ctx.Done():
			return
		case now := <-ticker.C:
			clients := atomic.LoadInt64(&d.clientCount)
			if clients > 0 {
				idleSince = now
				continue
			}
			if idleExpired(idleSince, now, timeout) {
				log.Printf("no clients connected for %v, shutting down daemon", timeout)
				d.Stop()
				return
			}
		}
	}
}

func idleExpired(idleSince, now time.Time, timeout time.Duration) bool {
	return now.Sub(idleSince) >= timeout
}

func (d *Daemon) Stop() {
	d.engine.Stop()
	if d.listener != nil {
		d.listener.Close()
	}
	d.tracker.Wait()
	d.cancel()
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0644); err != nil {
		log.Printf("warning: could not write PID file: %v", err)
	}
	log.Printf("server started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not remove PID file: %v", err)
	}
}
