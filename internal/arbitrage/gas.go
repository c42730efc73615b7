package arbitrage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

var weiPerEther = new(big.Float).SetFloat64(params.Ether)

// GasCostQuote converts gasUsed*gasPrice (wei) into quote currency at the
// given native-asset price. The wei product is computed in big.Int because it
// overflows uint64 at high gas prices.
func GasCostQuote(gasUsed, gasPrice uint64, nativePrice float64) float64 {
	if gasUsed == 0 || gasPrice == 0 {
		return 0
	}
	wei := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), new(big.Int).SetUint64(gasPrice))
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return ether * nativePrice
}
