// Package arbitrage holds the computational core of the scanner: the
// cross-venue signal detector, the fixed-size backtest simulator and the
// chart series built from aligned buckets. Nothing here performs I/O.
package arbitrage
