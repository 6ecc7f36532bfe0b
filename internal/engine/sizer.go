package engine

import "math"

// SizePosition computes how many contracts to buy at price (dollars, 0-1)
// given the per-trade dollar cap, the per-trade contract cap, and the balance
// actually available. Pure function of its inputs.
//
// Returns 0 contracts for a free or impossible price, or when the caps leave
// no room. Cost never exceeds the dollar cap or the available balance.
func SizePosition(price, maxPositionUSD float64, maxContracts int, balance float64) (int, float64) {
	if price <= 0 || price > 1 || maxContracts <= 0 {
		return 0, 0
	}

	contracts := int(math.Floor(maxPositionUSD / price))
	if contracts > maxContracts {
		contracts = maxContracts
	}

	if float64(contracts)*price > balance {
		contracts = int(math.Floor(balance / price))
	}

	if contracts <= 0 {
		return 0, 0
	}
	return contracts, float64(contracts) * price
}
