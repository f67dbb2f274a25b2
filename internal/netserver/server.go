// Package netserver is the request multiplexer: one TCP listener with a
// fixed pool of client slots plus one UDP endpoint, both polled once per
// control-loop iteration. Slots are serviced in fixed index order and no
// slot read blocks the loop; the UDP endpoint is serviced after all slots.
package netserver

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/mhartlieb/pincore/internal/config"
	"github.com/mhartlieb/pincore/internal/pipeline"
	"github.com/mhartlieb/pincore/internal/status"
	"go.uber.org/zap"
)

const (
	// maxLineLength bounds a single buffered request line.
	maxLineLength = 4096

	// writeTimeout bounds response writes so a stuck client cannot stall
	// the control loop.
	writeTimeout = 2 * time.Second
)

const (
	greetingBanner  = "Pin Controller Ready\r\nType HELP for command list\r\n"
	serverFullReply = "ERROR: Server full\r\n"
	lineTooLongResp = `{"success":false,"command":"INVALID","message":"Command line too long"}`
)

// clientSlot holds one connection-oriented peer. A slot is either empty
// (conn == nil) or holds exactly one live connection.
type clientSlot struct {
	conn net.Conn
	id   string
	buf  []byte
}

type Server struct {
	logger *zap.Logger
	pipe   *pipeline.Pipeline
	cfg    config.ServerConfig

	listener *net.TCPListener
	udp      *net.UDPConn

	slots   []clientSlot
	readBuf []byte
	udpBuf  []byte
}

func New(cfg config.ServerConfig, pipe *pipeline.Pipeline, logger *zap.Logger) *Server {
	return &Server{
		logger:  logger,
		pipe:    pipe,
		cfg:     cfg,
		slots:   make([]clientSlot, cfg.MaxClients),
		readBuf: make([]byte, 1024),
		udpBuf:  make([]byte, maxLineLength),
	}
}

// Start binds both transports to their fixed ports.
func (s *Server) Start() error {
	tcpAddr := &net.TCPAddr{Port: s.cfg.TCPPort}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("tcp listen on port %d: %w", s.cfg.TCPPort, err)
	}
	s.listener = listener

	udpAddr := &net.UDPAddr{Port: s.cfg.UDPPort}
	udp, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		listener.Close()
		return fmt.Errorf("udp listen on port %d: %w", s.cfg.UDPPort, err)
	}
	s.udp = udp

	s.logger.Info("Network server started",
		zap.Int("tcp_port", s.TCPPort()),
		zap.Int("udp_port", s.UDPPort()),
		zap.Int("max_clients", s.cfg.MaxClients))
	return nil
}

// TCPPort reports the bound TCP port (resolved when configured as 0).
func (s *Server) TCPPort() int {
	if s.listener == nil {
		return s.cfg.TCPPort
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// UDPPort reports the bound UDP port.
func (s *Server) UDPPort() int {
	if s.udp == nil {
		return s.cfg.UDPPort
	}
	return s.udp.LocalAddr().(*net.UDPAddr).Port
}

// Poll runs one multiplexer pass: service every occupied slot in fixed
// order, accept at most one pending connection, then the UDP endpoint.
// Servicing first releases slots whose peer already disconnected, so a
// reconnecting client is never rejected while a dead slot lingers.
func (s *Server) Poll() {
	s.serviceSlots()
	s.acceptPending()
	s.pollUDP()
}

func (s *Server) acceptPending() {
	// Zero-wait accept: the deadline in the past turns Accept into a poll.
	s.listener.SetDeadline(time.Now())

	conn, err := s.listener.Accept()
	if err != nil {
		if isTimeout(err) {
			return
		}
		s.logger.Warn("Accept failed", zap.Error(err))
		return
	}

	for i := range s.slots {
		if s.slots[i].conn != nil {
			continue
		}

		s.slots[i] = clientSlot{conn: conn, id: uuid.NewString()}

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write([]byte(greetingBanner)); err != nil {
			s.logger.Warn("Greeting write failed", zap.Error(err))
			s.releaseSlot(i)
			return
		}

		s.logger.Info("TCP client connected",
			zap.Int("slot", i),
			zap.String("client_id", s.slots[i].id),
			zap.String("remote_addr", conn.RemoteAddr().String()))
		return
	}

	// No free slot: reject explicitly before closing, never drop silently.
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.Write([]byte(serverFullReply))
	conn.Close()
	s.logger.Warn("Rejected TCP client, no free slots",
		zap.String("remote_addr", conn.RemoteAddr().String()))
}

func (s *Server) serviceSlots() {
	for i := range s.slots {
		slot := &s.slots[i]
		if slot.conn == nil {
			continue
		}

		// Zero-wait read; a silent client is skipped, never disconnected.
		slot.conn.SetReadDeadline(time.Now())
		n, err := slot.conn.Read(s.readBuf)
		if n > 0 {
			slot.buf = append(slot.buf, s.readBuf[:n]...)
			s.drainLines(i)
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			// EOF or a broken transport releases the slot for reuse.
			s.logger.Info("TCP client disconnected",
				zap.Int("slot", i),
				zap.String("client_id", slot.id))
			s.releaseSlot(i)
		}
	}
}

func (s *Server) drainLines(i int) {
	slot := &s.slots[i]

	for {
		idx := bytes.IndexByte(slot.buf, '\n')
		if idx < 0 {
			if len(slot.buf) > maxLineLength {
				slot.buf = slot.buf[:0]
				s.respond(i, lineTooLongResp)
			}
			return
		}

		line := string(bytes.TrimSpace(slot.buf[:idx]))
		slot.buf = slot.buf[idx+1:]

		if line == "" {
			continue
		}

		s.logger.Debug("TCP command",
			zap.Int("slot", i),
			zap.String("client_id", slot.id),
			zap.String("command", line))

		s.respond(i, s.pipe.Process(line))

		// The slot may have been released by a failed write.
		if slot.conn == nil {
			return
		}
	}
}

func (s *Server) respond(i int, response string) {
	slot := &s.slots[i]
	if slot.conn == nil {
		return
	}

	slot.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := slot.conn.Write([]byte(response + "\r\n")); err != nil {
		s.logger.Warn("Response write failed",
			zap.Int("slot", i),
			zap.String("client_id", slot.id),
			zap.Error(err))
		s.releaseSlot(i)
	}
}

func (s *Server) pollUDP() {
	s.udp.SetReadDeadline(time.Now())

	n, addr, err := s.udp.ReadFromUDP(s.udpBuf)
	if err != nil {
		if !isTimeout(err) {
			s.logger.Warn("UDP read failed", zap.Error(err))
		}
		return
	}

	// One datagram is one command; no session state is kept.
	line := string(bytes.TrimSpace(s.udpBuf[:n]))
	if line == "" {
		return
	}

	s.logger.Debug("UDP command",
		zap.String("remote_addr", addr.String()),
		zap.String("command", line))

	response := s.pipe.Process(line)
	if _, err := s.udp.WriteToUDP([]byte(response), addr); err != nil {
		s.logger.Warn("UDP reply failed", zap.String("remote_addr", addr.String()), zap.Error(err))
	}
}

func (s *Server) releaseSlot(i int) {
	if s.slots[i].conn != nil {
		s.slots[i].conn.Close()
	}
	s.slots[i] = clientSlot{}
}

// ConnectedClients counts the occupied slots.
func (s *Server) ConnectedClients() int {
	count := 0
	for i := range s.slots {
		if s.slots[i].conn != nil {
			count++
		}
	}
	return count
}

// Info supplies the server section of the STATUS document.
func (s *Server) Info() status.ServerInfo {
	return status.ServerInfo{
		TCPPort:    s.TCPPort(),
		UDPPort:    s.UDPPort(),
		TCPClients: s.ConnectedClients(),
	}
}

// Close tears down both transports and every occupied slot.
func (s *Server) Close() {
	for i := range s.slots {
		s.releaseSlot(i)
	}
	if s.listener != nil {
		s.listener.Close()
	}
	if s.udp != nil {
		s.udp.Close()
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
