package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/enicky/automower-ble/internal/discovery"
	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/transport"
	"github.com/enicky/automower-ble/internal/version"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// DefaultMTU is the BLE notification size the bridge splits responses into
	DefaultMTU = 20
)

// Config holds the simulated bridge configuration
type Config struct {
	Host     string
	Port     int
	Path     string
	MTU      int
	CertPath string
	KeyPath  string

	// Instance is the mDNS instance name. Empty disables advertising.
	Instance string

	// StepInterval advances the simulated mower. Zero disables it.
	StepInterval time.Duration
}

// Server is a websocket BLE bridge with a simulated mower behind it
type Server struct {
	config   Config
	mower    *Mower
	upgrader websocket.Upgrader
	http     *http.Server
	mdns     *zeroconf.Server

	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
	wg          sync.WaitGroup
	stop        context.CancelFunc
}

// NewServer creates a bridge serving m
func NewServer(config Config, m *Mower) *Server {
	if config.Path == "" {
		config.Path = discovery.DefaultPath
	}
	if config.MTU <= 0 {
		config.MTU = DefaultMTU
	}
	return &Server{
		config:      config,
		mower:       m,
		activeConns: make(map[string]*websocket.Conn),
	}
}

// Handler returns the bridge's HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleBridge)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	tls := s.config.CertPath != "" && s.config.KeyPath != ""

	ctx, s.stop = context.WithCancel(ctx)

	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Starting simulated BLE bridge",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.config.Path),
		zap.Int("mtu", s.config.MTU),
		zap.Bool("tls", tls),
	)

	if s.config.Instance != "" {
		if err := s.advertise(listener.Addr().(*net.TCPAddr).Port, tls); err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	if s.config.StepInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx)
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		if tls {
			errChan <- s.http.ServeTLS(listener, s.config.CertPath, s.config.KeyPath)
		} else {
			errChan <- s.http.Serve(listener)
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received, stopping bridge...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) advertise(port int, tls bool) error {
	txt := []string{
		"path=" + s.config.Path,
		"version=" + version.Get().Version,
		"simulated=1",
	}
	if tls {
		txt = append(txt, "tls=1")
	}
	server, err := zeroconf.Register(s.config.Instance, discovery.ServiceType, discovery.ServiceDomain, port, txt, nil)
	if err != nil {
		return err
	}
	s.mdns = server
	logging.Info("Advertising bridge",
		zap.String("instance", s.config.Instance),
		zap.String("service", discovery.ServiceType),
	)
	return nil
}

// run advances the simulated mower until ctx is done
func (s *Server) run(ctx context.Context) {
	ticker := time.NewTicker(s.config.StepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mower.Step(now)
		}
	}
}

// handleBridge relays request frames to the mower and writes each response
// back as MTU-sized binary messages
func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get(transport.AddressParam)
	if address == "" {
		http.Error(w, "missing "+transport.AddressParam+" parameter", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("Websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	remoteAddr := r.RemoteAddr
	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()
	s.wg.Add(1)

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		s.wg.Done()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")
	logging.Info("Client connected", zap.String("remote_addr", remoteAddr), zap.String("mower", address))

	for {
		messageType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("Read failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		logging.LogFrame("received", "request", msg)
		resp, err := s.mower.Handle(msg)
		if err != nil {
			logging.Warn("Request dropped", zap.String("remote_addr", remoteAddr), zap.Error(err))
			continue
		}
		logging.LogFrame("sent", "response", resp)

		if err := s.writeChunks(conn, resp); err != nil {
			logging.Error("Write failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
			return
		}
	}
}

func (s *Server) writeChunks(conn *websocket.Conn, data []byte) error {
	for off := 0; off < len(data); off += s.config.MTU {
		end := min(off+s.config.MTU, len(data))
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops advertising, closes active connections and waits for their
// handlers to finish
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down bridge...")

	if s.stop != nil {
		s.stop()
	}

	if s.mdns != nil {
		s.mdns.Shutdown()
	}

	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}

	// Hijacked websocket connections are not closed by http.Server.Shutdown
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}
	return err
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
