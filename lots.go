package binnacle

import (
	"time"

	"github.com/shopspring/decimal"
)

// lot represents a single purchase of a security, used for cost basis
// calculations.
type lot struct {
	Time     time.Time
	Quantity Quantity
	Cost     Money // Total cost of the lot (quantity * price)
}

type lots []lot

// buy appends a new lot.
func (l lots) buy(at time.Time, quantity Quantity, cost Money) lots {
	return append(l, lot{Time: at, Quantity: quantity, Cost: cost})
}

// fifoCostOfSelling calculates the cost of selling a quantity of shares using FIFO.
func (l lots) fifoCostOfSelling(quantityToSell Quantity) Money {
	var costOfSoldShares Money

	for _, currentLot := range l {
		if currentLot.Quantity.GreaterThan(quantityToSell) {
			// Partial sale from this lot
			costOfSoldPortion := currentLot.Cost.Mul(quantityToSell).Div(currentLot.Quantity)
			costOfSoldShares = costOfSoldShares.Add(costOfSoldPortion)
			return costOfSoldShares
		} else {
			// Full sale of this lot
			costOfSoldShares = costOfSoldShares.Add(currentLot.Cost)
			quantityToSell = quantityToSell.Sub(currentLot.Quantity)
		}
	}
	return costOfSoldShares
}

// sell reduces the available lots by a given quantity to sell using the FIFO method.
func (l lots) sell(quantityToSell Quantity) lots {
	var remainingLots lots

	for _, currentLot := range l {
		if quantityToSell.IsZero() {
			remainingLots = append(remainingLots, currentLot)
			continue
		}

		if currentLot.Quantity.GreaterThan(quantityToSell) {
			// Partial sale from this lot
			costOfSoldPortion := currentLot.Cost.Mul(quantityToSell).Div(currentLot.Quantity)
			newLot := lot{
				Time:     currentLot.Time,
				Quantity: currentLot.Quantity.Sub(quantityToSell),
				Cost:     currentLot.Cost.Sub(costOfSoldPortion),
			}
			remainingLots = append(remainingLots, newLot)
			quantityToSell = Q(decimal.Zero)
		} else {
			// Full sale of this lot
			quantityToSell = quantityToSell.Sub(currentLot.Quantity)
		}
	}
	return remainingLots
}

// position returns the total quantity still held across all lots.
func (l lots) position() Quantity {
	var total Quantity
	for _, currentLot := range l {
		total = total.Add(currentLot.Quantity)
	}
	return total
}

// costBasis returns the total cost of all remaining lots.
func (l lots) costBasis() Money {
	var total Money
	for _, currentLot := range l {
		total = total.Add(currentLot.Cost)
	}
	return total
}
