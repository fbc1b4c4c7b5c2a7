package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType identifies the closed set of domain events produced by the
// classifier. Anything outside this set is discarded upstream.
type EventType string

const (
	EventTokenCreated  EventType = "token_created"
	EventCurveProgress EventType = "curve_progress"
	EventMigration     EventType = "migration"
)

// Event is the tagged union consumed by the filter chain, the signal
// generator and the outcome tracker. Every event carries a non-empty
// subject token; transactions that fail to resolve one never become events.
type Event interface {
	Kind() EventType
	Token() string
	Signature() string
	When() time.Time
}

// EventMeta holds the fields common to all event variants.
type EventMeta struct {
	TxSignature  string
	SubjectToken string
	Timestamp    time.Time
	Slot         int64 // 0 when unknown
}

func (m EventMeta) Token() string     { return m.SubjectToken }
func (m EventMeta) Signature() string { return m.TxSignature }
func (m EventMeta) When() time.Time   { return m.Timestamp }

// TokenCreatedEvent marks a new token entering the bonding curve.
type TokenCreatedEvent struct {
	EventMeta
	CreatorAddress   string
	TokenName        string
	TokenSymbol      string
	InitialLiquidity decimal.Decimal // SOL, >= 0
}

func (TokenCreatedEvent) Kind() EventType { return EventTokenCreated }

// CurveProgressEvent reports trading activity on the bonding curve.
// ProgressPct is an approximation and defaults to 0 when the transaction
// alone does not carry it. MarketCap and UnitPrice use the decimal zero
// value to mean "not derivable from this transaction".
type CurveProgressEvent struct {
	EventMeta
	ProgressPct  float64
	Liquidity    decimal.Decimal // SOL, >= 0
	MarketCap    decimal.Decimal // SOL, zero when unknown
	UnitPrice    decimal.Decimal // SOL per token, zero when unknown
	TradedAmount decimal.Decimal // token units, zero when unknown
}

func (CurveProgressEvent) Kind() EventType { return EventCurveProgress }

// MigrationEvent marks the token's liquidity leaving the bonding curve
// for an open trading venue.
type MigrationEvent struct {
	EventMeta
	FinalLiquidity  decimal.Decimal // SOL, >= 0
	DestinationPool string          // empty when unknown
}

func (MigrationEvent) Kind() EventType { return EventMigration }
