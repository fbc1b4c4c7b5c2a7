// Package ingest provides an optional streaming transaction source that
// feeds the same pipeline as the webhook surface.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pump-signals/internal/classifier"
	"pump-signals/internal/pipeline"
)

// Config configures stream behavior.
type Config struct {
	// Endpoint is the enhanced-transaction stream URL (ws:// or wss://).
	Endpoint string
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout bounds the wait for a single message.
	ReadTimeout time.Duration
}

// DefaultConfig returns default stream configuration.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:          endpoint,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// Source consumes a websocket stream of enhanced transactions and hands
// each message to the processor as a batch.
type Source struct {
	cfg       Config
	processor *pipeline.Processor
	log       zerolog.Logger
	closed    atomic.Bool
}

func NewSource(cfg Config, processor *pipeline.Processor, log zerolog.Logger) *Source {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = 30 * time.Second
	}
	return &Source{
		cfg:       cfg,
		processor: processor,
		log:       log.With().Str("component", "ws_ingest").Logger(),
	}
}

// Run consumes the stream until ctx is canceled, reconnecting with
// exponential backoff on connection loss.
func (s *Source) Run(ctx context.Context) error {
	delay := s.cfg.ReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.consume(ctx)
		if s.closed.Load() || ctx.Err() != nil {
			return ctx.Err()
		}

		s.log.Warn().Err(err).Dur("retry_in", delay).Msg("stream disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
	}
}

// Close makes Run return after the current read.
func (s *Source) Close() {
	s.closed.Store(true)
}

// consume runs one connection to exhaustion.
func (s *Source) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	s.log.Info().Str("endpoint", s.cfg.Endpoint).Msg("stream connected")

	// Close the connection when the context ends so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if s.cfg.PingInterval > 0 {
		go s.pingLoop(conn, stop)
	}

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}

		txs, err := decodeMessage(msg)
		if err != nil {
			s.log.Warn().Err(err).Msg("malformed stream message")
			continue
		}
		if len(txs) > 0 {
			s.processor.ProcessBatch(ctx, txs)
		}

		if s.closed.Load() {
			return nil
		}
	}
}

func (s *Source) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// decodeMessage accepts a single transaction object, a bare array, or a
// wrapped {"transactions": [...]} object.
func decodeMessage(msg []byte) ([]classifier.RawTransaction, error) {
	var list []classifier.RawTransaction
	if err := json.Unmarshal(msg, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Transactions []classifier.RawTransaction `json:"transactions"`
	}
	if err := json.Unmarshal(msg, &wrapped); err == nil && len(wrapped.Transactions) > 0 {
		return wrapped.Transactions, nil
	}

	var single classifier.RawTransaction
	if err := json.Unmarshal(msg, &single); err != nil {
		return nil, err
	}
	if single.Signature == "" {
		return nil, nil
	}
	return []classifier.RawTransaction{single}, nil
}
