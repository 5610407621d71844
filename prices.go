package binnacle

import (
	"sort"

	"github.com/DarioAlonsoCerezo/binnacle/date"
)

// pricePoint is one observation. End-of-day close marks outrank the
// execution prices seen on the same day.
type pricePoint struct {
	price Money
	close bool
}

// PriceTable collects the prices observed while importing: equity
// execution prices and the close prices of statement position sections.
// It never fetches market data; a ticker nobody traded has no price.
type PriceTable struct {
	histories map[string]*date.History[pricePoint]
}

// NewPriceTable returns an empty price table.
func NewPriceTable() *PriceTable {
	return &PriceTable{histories: make(map[string]*date.History[pricePoint])}
}

func (p *PriceTable) history(ticker string) *date.History[pricePoint] {
	h := p.histories[ticker]
	if h == nil {
		h = &date.History[pricePoint]{}
		p.histories[ticker] = h
	}
	return h
}

// Learn records an execution price for a ticker on a day. A later
// execution for the same day overwrites the earlier one, but never a
// close mark. Empty tickers and zero prices are ignored.
func (p *PriceTable) Learn(ticker string, on date.Date, price Money) {
	if ticker == "" || price.IsZero() {
		return
	}
	h := p.history(ticker)
	if existing, ok := h.Get(on); ok && existing.close {
		return
	}
	h.Append(on, pricePoint{price: price})
}

// LearnClose records a statement close price for a ticker on a day. It
// overwrites whatever the day already holds.
func (p *PriceTable) LearnClose(ticker string, on date.Date, price Money) {
	if ticker == "" || price.IsZero() {
		return
	}
	p.history(ticker).Append(on, pricePoint{price: price, close: true})
}

// AsOf returns the last price observed on or before day.
func (p *PriceTable) AsOf(ticker string, day date.Date) (Money, bool) {
	h := p.histories[ticker]
	if h == nil {
		return Money{}, false
	}
	point, ok := h.ValueAsOf(day)
	return point.price, ok
}

// Latest returns the most recent observation for a ticker.
func (p *PriceTable) Latest(ticker string) (date.Date, Money, bool) {
	h := p.histories[ticker]
	if h == nil || h.Len() == 0 {
		return date.Date{}, Money{}, false
	}
	day, point := h.Latest()
	return day, point.price, true
}

// Tickers returns the tickers with at least one observation, sorted.
func (p *PriceTable) Tickers() []string {
	tickers := make([]string, 0, len(p.histories))
	for ticker := range p.histories {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}
