package domain

// TxType distinguishes buy and sell transactions.
type TxType string

// Transaction type constants.
const (
	TxBuy  TxType = "BUY"
	TxSell TxType = "SELL"
)

// TradeTransaction is an immutable record of one simulated buy or sell.
//
// Sign invariant: buys have GrossLamports < 0 and NetLamports < 0, sells have
// GrossLamports > 0. Gross is the lamport transfer before fees, Net after.
type TradeTransaction struct {
	TimestampMs   int64
	Type          TxType
	GrossLamports int64   // lamports moved before fees (negative for buys)
	NetLamports   int64   // lamports moved after fees
	FeeLamports   int64   // priority fee + tip (+ account creation on first buy)
	PriceSOL      float64 // executed unit price in SOL per whole token
	TokenAmount   int64   // token base units bought or sold
	HoldingsAfter int64   // token base units held after this transaction
	BalanceAfter  int64   // lamport balance after this transaction

	// Metadata carries free-form diagnostics: originating snapshot index,
	// decision reason, slippage mode applied.
	Metadata map[string]string
}

// Validate checks the sign invariant.
func (t *TradeTransaction) Validate() error {
	switch t.Type {
	case TxBuy:
		if t.GrossLamports >= 0 {
			return ErrTxSignInvariant
		}
	case TxSell:
		if t.GrossLamports <= 0 {
			return ErrTxSignInvariant
		}
	default:
		return ErrUnknownTxType
	}
	return nil
}
