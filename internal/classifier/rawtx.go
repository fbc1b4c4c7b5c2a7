package classifier

// RawTransaction is one enhanced transaction record as delivered by the
// indexing provider. The payload is loosely typed and consumed read-only;
// unknown fields are ignored on decode.
type RawTransaction struct {
	Signature       string           `json:"signature"`
	Type            string           `json:"type"`
	Source          string           `json:"source"`
	Slot            int64            `json:"slot"`
	Timestamp       int64            `json:"timestamp"` // unix seconds, 0 when absent
	FeePayer        string           `json:"feePayer"`
	Description     string           `json:"description"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	AccountData     []AccountData    `json:"accountData"`
}

// TokenTransfer is a single SPL token movement within a transaction.
type TokenTransfer struct {
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"`
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
}

// NativeTransfer is a single SOL movement within a transaction.
// Amount is in lamports and may be negative.
type NativeTransfer struct {
	Amount          int64  `json:"amount"`
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
}

// AccountData carries per-account balance changes, the fallback source for
// resolving the subject token when the transfer list is empty.
type AccountData struct {
	Account             string               `json:"account"`
	NativeBalanceChange int64                `json:"nativeBalanceChange"`
	TokenBalanceChanges []TokenBalanceChange `json:"tokenBalanceChanges"`
}

// TokenBalanceChange is a raw token delta on one account.
type TokenBalanceChange struct {
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

// RawTokenAmount is an unscaled token amount with its decimal exponent.
type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    int32  `json:"decimals"`
}
