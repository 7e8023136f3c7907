// Package trading implements order settlement and position accounting.
package trading

import (
	"time"

	apperrors "ai-trader/internal/errors"
	"ai-trader/internal/models"
)

// ApplyBuyFill applies a buy fill of quantity qty at price to the
// portfolio's position in the order's symbol and debits cash.
//
// The new average entry price is the weighted mean of the existing lot
// and the fill, computed from the quantity and average captured before
// the position is mutated:
//
//	newAvg = (oldAvg*oldQty + price*qty) / (oldQty + qty)
//
// The caller holds the portfolio's settlement lock.
func ApplyBuyFill(p *models.Portfolio, symbol string, qty int64, price, commission float64) {
	pos, ok := p.Position(symbol)

	oldQty := pos.Quantity
	oldAvg := pos.AverageEntryPrice
	newQty := oldQty + qty

	if !ok || oldQty == 0 {
		pos = models.Position{Symbol: symbol}
		pos.AverageEntryPrice = price
	} else {
		pos.AverageEntryPrice = (oldAvg*float64(oldQty) + price*float64(qty)) / float64(newQty)
	}
	pos.Quantity = newQty
	markPosition(&pos, price)

	p.SetPosition(pos)
	p.CashBalance -= price*float64(qty) + commission
}

// ApplySellFill applies a sell fill of quantity qty at price, credits
// cash, and returns the realized profit or loss of the fill:
//
//	realizedPL = (price - avgEntry) * qty
//
// The average entry price of the remaining lot is unchanged; a position
// sold down to zero quantity is removed from the portfolio. The caller
// must have verified the position holds at least qty shares.
func ApplySellFill(p *models.Portfolio, symbol string, qty int64, price, commission float64) float64 {
	pos, _ := p.Position(symbol)

	realized := (price - pos.AverageEntryPrice) * float64(qty)

	pos.Quantity -= qty
	if pos.Quantity == 0 {
		p.RemovePosition(symbol)
	} else {
		markPosition(&pos, price)
		p.SetPosition(pos)
	}

	p.CashBalance += price*float64(qty) - commission
	return realized
}

// markPosition refreshes the derived fields of a position against the
// given market price.
func markPosition(pos *models.Position, price float64) {
	pos.CurrentPrice = price
	pos.MarketValue = price * float64(pos.Quantity)

	costBasis := pos.AverageEntryPrice * float64(pos.Quantity)
	pos.UnrealizedPL = pos.MarketValue - costBasis
	if costBasis != 0 {
		pos.UnrealizedPLPercent = pos.UnrealizedPL / costBasis * 100
	} else {
		pos.UnrealizedPLPercent = 0
	}
}

// RecomputeEquity rebuilds the portfolio's equity from cash plus the
// market value of every open position, and refreshes the total return
// metrics against the initial equity. Called after every ledger
// mutation, before the settlement is persisted.
func RecomputeEquity(p *models.Portfolio) {
	equity := p.CashBalance
	for _, pos := range p.Positions {
		equity += pos.MarketValue
	}
	p.Equity = equity

	if p.InitialEquity != 0 {
		p.Performance.TotalReturn = equity - p.InitialEquity
		p.Performance.TotalReturnPercent = p.Performance.TotalReturn / p.InitialEquity * 100
	}
	p.UpdatedAt = time.Now()
}

// MarkToMarket refreshes every position's derived fields against the
// given prices and recomputes equity. Symbols missing from prices keep
// their last known price. Used on the portfolio read path.
func MarkToMarket(p *models.Portfolio, prices map[string]float64) {
	for i := range p.Positions {
		price, ok := prices[p.Positions[i].Symbol]
		if !ok {
			price = p.Positions[i].CurrentPrice
		}
		markPosition(&p.Positions[i], price)
	}
	RecomputeEquity(p)
}

// checkSellable verifies the portfolio holds at least qty shares of
// symbol, returning ErrInsufficientPosition otherwise. Runs before any
// ledger mutation so a failed check leaves the portfolio untouched.
func checkSellable(p *models.Portfolio, symbol string, qty int64) error {
	pos, ok := p.Position(symbol)
	if !ok || pos.Quantity < qty {
		held := int64(0)
		if ok {
			held = pos.Quantity
		}
		return apperrors.Wrapf(apperrors.ErrInsufficientPosition,
			"sell %d %s, holding %d", qty, symbol, held)
	}
	return nil
}
