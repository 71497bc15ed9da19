// Package ingest accepts captured analytics events over a local TCP
// socket, one JSON document per line, and feeds them to the capture
// pipeline. It stands in for the extension's messaging transport so the
// panel host is runnable end to end.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/agch-dev/analytics-x-ray/internal/xray/common/clock"
	"github.com/agch-dev/analytics-x-ray/internal/xray/common/log"
	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
)

// EventSink consumes parsed events. Implemented by the capture pipeline.
type EventSink interface {
	Observe(e domain.Event) bool
}

// TCPServer listens for line-delimited JSON events.
type TCPServer struct {
	addr   string
	sink   EventSink
	clk    clock.Clock
	logger log.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewTCPServer constructs a server bound to addr on Start.
func NewTCPServer(addr string, sink EventSink, clk clock.Clock, logger log.Logger) *TCPServer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &TCPServer{addr: addr, sink: sink, clk: clk, logger: logger}
}

// Start listens on the configured address and serves connections until ctx
// is done. Blocking call.
func (s *TCPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info(map[string]any{"addr": ln.Addr().String()}, "event ingest listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn(map[string]any{"error": err.Error()}, "accept failed")
			continue
		}
		go s.handleConnection(conn)
	}
}

// Addr returns the bound address, or the configured one before Start.
func (s *TCPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.ingestLine(line)
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Debug(map[string]any{"error": err.Error()}, "read error on ingest connection")
			}
			return
		}
	}
}

// ingestLine parses one JSON document and hands it to the sink. Lines that
// do not parse or lack an origin are dropped with a debug log; a broken
// producer must not take the ingest down.
func (s *TCPServer) ingestLine(line []byte) {
	if !gjson.ValidBytes(line) {
		s.logger.Debug(nil, "dropping non-JSON ingest line")
		return
	}
	origin := gjson.GetBytes(line, "origin").String()
	name := gjson.GetBytes(line, "name").String()
	provider := gjson.GetBytes(line, "provider").String()

	e, err := domain.NewEvent(provider, name, origin, string(line), s.clk.Now())
	if err != nil {
		s.logger.Debug(map[string]any{"error": err.Error()}, "dropping malformed event")
		return
	}
	s.sink.Observe(e)
}
