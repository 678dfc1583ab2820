package client

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Alert bands for the spending gauge.
const (
	AlertNone    = "none"
	AlertWarning = "warning"
	AlertDanger  = "danger"
)

// Projection is what a wallet would look like after a payment of Amount.
// The server decides; this only lets a UI warn before submitting.
type Projection struct {
	Amount          decimal.Decimal
	SpentAfter      decimal.Decimal
	BalanceAfter    decimal.Decimal
	PercentageAfter *decimal.Decimal
	Alert           string
	ExceedsBalance  bool
	ExceedsLimit    bool
}

// ProjectSpend estimates the effect of paying amount from w.
func ProjectSpend(w *Wallet, amount decimal.Decimal) Projection {
	p := Projection{
		Amount:         amount,
		SpentAfter:     w.SpentThisMonth.Add(amount),
		BalanceAfter:   w.Balance.Sub(amount),
		Alert:          AlertNone,
		ExceedsBalance: amount.GreaterThan(w.Balance),
	}
	if !w.HasLimit() {
		return p
	}

	pct := p.SpentAfter.Div(w.MonthlyLimit).Mul(hundred).Round(2)
	p.PercentageAfter = &pct
	p.ExceedsLimit = p.SpentAfter.GreaterThan(w.MonthlyLimit)
	switch {
	case pct.GreaterThanOrEqual(decimal.NewFromInt(90)):
		p.Alert = AlertDanger
	case pct.GreaterThanOrEqual(decimal.NewFromInt(80)):
		p.Alert = AlertWarning
	}
	return p
}
