// Package elevctl is the dispatcher: a TCP server multiplexing connected
// cars and transient call clients over the framed protocol.
package elevctl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/christian-bunn/elevator-control-system/internal/elevconfig"
	"github.com/christian-bunn/elevator-control-system/internal/elevfleet"
	"github.com/christian-bunn/elevator-control-system/internal/elevwire"
	"github.com/christian-bunn/elevator-control-system/internal/logger"
)

var Log = logger.GetLogger()

// Server owns the listening socket and the fleet.
type Server struct {
	cfg      elevconfig.Controller
	fleet    *elevfleet.Fleet
	listener net.Listener
	handlers sync.WaitGroup

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

func NewServer(cfg elevconfig.Controller) *Server {
	return &Server{
		cfg:   cfg,
		fleet: elevfleet.NewFleet(cfg.MaxCars),
		conns: make(map[net.Conn]struct{}),
	}
}

func (s *Server) track(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

// closeAll unblocks every handler still reading a socket.
func (s *Server) closeAll() {
	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()
}

// Addr returns the bound listen address, valid once Listen (or Serve) has
// bound the socket.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Fleet exposes the live fleet, primarily for inspection.
func (s *Server) Fleet() *elevfleet.Fleet {
	return s.fleet
}

// Listen binds the configured address without accepting yet.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("controller listen: %w", err)
	}
	s.listener = listener
	return nil
}

// Serve accepts connections until ctx is cancelled. The first framed
// message decides the handler: CAR connections stay for the car's
// lifetime, CALL connections are answered and closed.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	Log.Info().Msgf("Controller listening on %s", s.listener.Addr())

	go func() {
		<-ctx.Done()
		s.listener.Close()
		s.closeAll()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			Log.Warn().Msgf("accept: %v", err)
			continue
		}
		s.handlers.Add(1)
		s.track(conn)
		go func() {
			defer s.handlers.Done()
			defer s.untrack(conn)
			s.handleConnection(ctx, conn)
		}()
	}

	s.handlers.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	connID := uuid.NewString()

	first, err := elevwire.Receive(conn)
	if err != nil {
		conn.Close()
		return
	}

	switch {
	case strings.HasPrefix(first, "CAR "):
		s.handleCar(ctx, conn, connID, first)
	case strings.HasPrefix(first, "CALL "):
		s.handleCall(conn, connID, first)
	default:
		Log.Debug().Msgf("conn %s: unrecognised first message %q", connID, first)
		conn.Close()
	}
}

// handleCar registers the car and folds its STATUS stream into the fleet
// until the connection drops or the car leaves service.
func (s *Server) handleCar(ctx context.Context, conn net.Conn, connID string, handshake string) {
	defer conn.Close()

	hs, err := elevwire.ParseCarHandshake(handshake)
	if err != nil {
		Log.Debug().Msgf("conn %s: %v", connID, err)
		return
	}

	car := elevfleet.NewCar(conn, hs)
	if err := s.fleet.Add(car); err != nil {
		// Fleet full: accept-and-close silently.
		Log.Warn().Msgf("conn %s: rejecting car %s: %v", connID, hs.Name, err)
		return
	}
	Log.Info().Msgf("conn %s: car %s joined, range %s..%s", connID, hs.Name, hs.Lowest, hs.Highest)

	for ctx.Err() == nil {
		payload, err := elevwire.Receive(conn)
		if err != nil {
			break
		}
		switch {
		case strings.HasPrefix(payload, "STATUS "):
			report, err := elevwire.ParseStatusReport(payload)
			if err != nil {
				Log.Debug().Msgf("conn %s: %v", connID, err)
				s.fleet.Remove(car)
				return
			}
			car.UpdateStatus(report)
		case payload == elevwire.MSG_INDIVIDUAL_SERVICE, payload == elevwire.MSG_EMERGENCY:
			Log.Info().Msgf("conn %s: car %s left service (%s)", connID, hs.Name, payload)
			s.fleet.Remove(car)
			return
		default:
			Log.Debug().Msgf("conn %s: unrecognised message %q", connID, payload)
			s.fleet.Remove(car)
			return
		}
	}

	s.fleet.Remove(car)
	Log.Info().Msgf("conn %s: car %s disconnected", connID, hs.Name)
}

// handleCall answers one CALL with a car assignment or UNAVAILABLE.
func (s *Server) handleCall(conn net.Conn, connID string, payload string) {
	defer conn.Close()

	call, err := elevwire.ParseCallRequest(payload)
	if err != nil {
		Log.Debug().Msgf("conn %s: %v", connID, err)
		elevwire.Send(conn, elevwire.MSG_UNAVAILABLE)
		return
	}

	car := s.fleet.Select(call)
	if car == nil {
		Log.Info().Msgf("conn %s: no car serves %s -> %s", connID, call.Source, call.Destination)
		elevwire.Send(conn, elevwire.MSG_UNAVAILABLE)
		return
	}

	car.EnqueueCall(call)
	elevwire.Send(conn, elevwire.CarAssignment(car.Name()))
	Log.Info().Msgf("conn %s: %s -> %s assigned to car %s", connID, call.Source, call.Destination, car.Name())
	Log.Debug().Msgf("fleet: %+v", s.fleet.Snapshot())
}
