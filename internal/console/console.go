// Package console serves the line-oriented operator surface over TCP.
// Every command is forwarded to the device's Exec path, the same one the
// HTTP layer uses; there is no second implementation of the operations.
package console

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// Executor runs one command line. Implemented by the device aggregate.
type Executor interface {
	Exec(line string) (string, error)
}

// Server accepts plain-text connections and relays commands.
type Server struct {
	exec Executor
	log  *logrus.Logger
}

func NewServer(exec Executor, log *logrus.Logger) *Server {
	return &Server{exec: exec, log: log}
}

// ListenAndServe accepts connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("console listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.WithField("addr", addr).Info("console listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.WithError(err).Warn("console accept failed")
			continue
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	fmt.Fprintln(conn, "hydro-hero console; type 'help'")
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), "quit") {
			return
		}

		out, err := s.exec.Exec(line)
		if err != nil {
			fmt.Fprintf(conn, "error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Fprintln(conn, out)
		}
	}
}
