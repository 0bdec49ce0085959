package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/cloudx-io/playerauction/auction"
	"github.com/cloudx-io/playerauction/sessionapi"
)

// AuctionServer accepts one JSON command per connection and applies it to
// the session.
type AuctionServer struct {
	session        *auction.Session
	maxWorkers     int
	requestTimeout time.Duration
	clock          clockwork.Clock
	limiter        *rate.Limiter
}

func NewAuctionServer(session *auction.Session, maxWorkers int, requestTimeout time.Duration) *AuctionServer {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &AuctionServer{
		session:        session,
		maxWorkers:     maxWorkers,
		requestTimeout: requestTimeout,
		clock:          clockwork.NewRealClock(),
	}
}

// SetRateLimit caps accepted commands at perSecond with the given burst.
// Commands over the limit are answered with a rate_limited error. A
// non-positive rate removes the limit.
func (s *AuctionServer) SetRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		s.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Serve accepts connections until ctx is canceled or the listener fails.
// Each connection runs on a worker slot; when every slot is busy the
// connection is closed immediately.
func (s *AuctionServer) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close listener")
		}
	}()

	semaphore := make(chan struct{}, s.maxWorkers)
	log.Info().
		Str("address", listener.Addr().String()).
		Int("workers", s.maxWorkers).
		Msg("auction server listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Error().Err(err).Msg("failed to accept connection")
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(ctx, c)
			}(conn)
		default:
			log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("no workers available, rejecting connection")
			if err := conn.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close rejected connection")
			}
		}
	}
}

func (s *AuctionServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("panic recovered in handleConnection")
		}
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close connection")
		}
	}()

	_ = conn.SetDeadline(s.clock.Now().Add(s.requestTimeout))

	var req sessionapi.CommandRequest
	var response sessionapi.CommandResponse
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("failed to decode request")
		response = errorResponse("Failed to decode request: " + err.Error())
	} else if s.limiter != nil && !s.limiter.Allow() {
		log.Warn().Str("type", req.Type).Msg("rate limit exceeded")
		response = errorResponse("Too many requests, slow down")
		response.Reason = reasonRateLimited
	} else {
		log.Debug().Str("type", req.Type).Msg("received request")
		reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
		response = s.handleRequest(reqCtx, req)
		cancel()
	}
	response.Timestamp = s.clock.Now().Unix()

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		log.Error().Err(err).Str("type", req.Type).Msg("failed to encode response")
		return
	}
	log.Debug().Str("type", req.Type).Bool("success", response.Success).Msg("sent response")
}
