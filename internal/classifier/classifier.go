// Package classifier turns raw enhanced-transaction records into domain
// events. It is the only component that understands the provider's wire
// shape; everything downstream works on the closed event union.
package classifier

import (
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pump-signals/internal/domain"
)

const (
	// SourcePumpFun is the provider source tag for pump.fun program
	// transactions. Everything else is discarded.
	SourcePumpFun = "PUMP_FUN"

	// pumpMintSuffix is the vanity suffix pump.fun grinds into its mints.
	pumpMintSuffix = "pump"

	// wrappedSOLMint shares no suffix with pump mints but is excluded
	// explicitly in case the heuristic ever widens.
	wrappedSOLMint = "So11111111111111111111111111111111111111112"

	mintByteLen = 32
)

// Classifier maps raw transactions to domain events. Stateless and safe
// for concurrent use.
type Classifier struct {
	log zerolog.Logger
	now func() time.Time
}

func New(log zerolog.Logger) *Classifier {
	return &Classifier{log: log, now: time.Now}
}

// Classify returns the domain event for tx, or nil when the transaction is
// irrelevant or unparseable. A malformed record is logged and dropped; it
// never aborts the caller's batch.
func (c *Classifier) Classify(tx RawTransaction) (ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn().
				Str("tx_signature", tx.Signature).
				Interface("panic", r).
				Msg("transaction classification panicked, discarding")
			ev = nil
		}
	}()

	if tx.Signature == "" || tx.Source != SourcePumpFun {
		return nil
	}

	switch strings.ToUpper(tx.Type) {
	case "CREATE":
		return c.buildTokenCreated(tx)
	case "SWAP":
		return c.buildCurveProgress(tx)
	case "MIGRATE", "MIGRATION":
		return c.buildMigration(tx)
	default:
		return nil
	}
}

// IsSubjectMint reports whether mint looks like a pump.fun token address:
// carries the vanity suffix, decodes to a 32-byte key, and is not a known
// base asset.
func IsSubjectMint(mint string) bool {
	if !strings.HasSuffix(mint, pumpMintSuffix) || mint == wrappedSOLMint {
		return false
	}
	raw, err := base58.Decode(mint)
	return err == nil && len(raw) == mintByteLen
}

func (c *Classifier) meta(tx RawTransaction, token string) domain.EventMeta {
	ts := c.now().UTC()
	if tx.Timestamp > 0 {
		ts = time.Unix(tx.Timestamp, 0).UTC()
	}
	return domain.EventMeta{
		TxSignature:  tx.Signature,
		SubjectToken: token,
		Timestamp:    ts,
		Slot:         tx.Slot,
	}
}

func (c *Classifier) buildTokenCreated(tx RawTransaction) domain.Event {
	token, _ := resolveSubjectToken(tx)
	if token == "" {
		c.log.Debug().Str("tx_signature", tx.Signature).Msg("create transaction without subject token")
		return nil
	}

	liquidity := decimal.Zero
	for _, nt := range tx.NativeTransfers {
		if nt.Amount > 0 {
			liquidity = liquidity.Add(lamportsToSOL(nt.Amount))
		}
	}

	return domain.TokenCreatedEvent{
		EventMeta:        c.meta(tx, token),
		CreatorAddress:   tx.FeePayer,
		InitialLiquidity: liquidity,
	}
}

func (c *Classifier) buildCurveProgress(tx RawTransaction) domain.Event {
	token, traded := resolveSubjectToken(tx)
	if token == "" {
		return nil
	}

	// Prefer the explicit transfer list for SOL legs; fall back to raw
	// balance deltas when the provider omits it.
	var lamports []int64
	for _, nt := range tx.NativeTransfers {
		lamports = append(lamports, absInt64(nt.Amount))
	}
	if len(lamports) == 0 {
		for _, acc := range tx.AccountData {
			if acc.NativeBalanceChange != 0 {
				lamports = append(lamports, absInt64(acc.NativeBalanceChange))
			}
		}
	}

	var mainSOL, totalSOL decimal.Decimal
	if len(lamports) > 0 {
		var maxL, sum int64
		for _, l := range lamports {
			sum += l
			if l > maxL {
				maxL = l
			}
		}
		mainSOL = lamportsToSOL(maxL)
		// Both sides of a swap appear in the deltas, so the sum double
		// counts the pool's actual SOL.
		totalSOL = lamportsToSOL(sum).DivRound(decimal.NewFromInt(2), 18)
	}

	var unitPrice, marketCap decimal.Decimal
	if traded.IsPositive() && mainSOL.IsPositive() {
		unitPrice = mainSOL.DivRound(traded, 18)
		marketCap = unitPrice.Mul(domain.TotalTokenSupply)
	}

	return domain.CurveProgressEvent{
		EventMeta:    c.meta(tx, token),
		ProgressPct:  0, // not derivable from the transaction alone
		Liquidity:    totalSOL,
		MarketCap:    marketCap,
		UnitPrice:    unitPrice,
		TradedAmount: traded,
	}
}

func (c *Classifier) buildMigration(tx RawTransaction) domain.Event {
	token, _ := resolveSubjectToken(tx)
	if token == "" {
		return nil
	}

	liquidity := decimal.Zero
	for _, nt := range tx.NativeTransfers {
		liquidity = liquidity.Add(lamportsToSOL(absInt64(nt.Amount)))
	}

	return domain.MigrationEvent{
		EventMeta:      c.meta(tx, token),
		FinalLiquidity: liquidity,
	}
}

// resolveSubjectToken scans the transfer list, then the per-account balance
// changes, for the first mint passing the subject heuristic. The second
// return is the absolute traded token amount for that mint, zero when it
// cannot be read.
func resolveSubjectToken(tx RawTransaction) (string, decimal.Decimal) {
	for _, tr := range tx.TokenTransfers {
		if IsSubjectMint(tr.Mint) {
			return tr.Mint, decimal.NewFromFloat(tr.TokenAmount).Abs()
		}
	}
	for _, acc := range tx.AccountData {
		for _, tbc := range acc.TokenBalanceChanges {
			if !IsSubjectMint(tbc.Mint) {
				continue
			}
			amount := decimal.Zero
			if raw, err := decimal.NewFromString(tbc.RawTokenAmount.TokenAmount); err == nil {
				amount = raw.Shift(-tbc.RawTokenAmount.Decimals).Abs()
			}
			return tbc.Mint, amount
		}
	}
	return "", decimal.Zero
}

// lamportsToSOL converts an integer lamport amount to SOL exactly.
func lamportsToSOL(lamports int64) decimal.Decimal {
	return decimal.New(lamports, -9)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
