package domain

// TokenInfo holds static token metadata resolved once before simulation.
// Produced by the external metadata provider.
type TokenInfo struct {
	Mint                   string
	Symbol                 string
	Name                   string
	Creator                string
	BondingCurve           string // bonding curve account address
	AssociatedBondingCurve string // curve token account address
}
