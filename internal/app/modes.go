package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/server"
	"github.com/alanyoungcy/arbscan/internal/server/handler"
)

// AnalyzeMode runs one detection pass and exits.
func (a *App) AnalyzeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting analyze mode")

	report, err := deps.Analysis.Run(ctx)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	a.logger.InfoContext(ctx, "analyze mode complete",
		slog.Int("buckets_scanned", report.BucketsScanned),
		slog.Int("signals_emitted", report.SignalsEmitted),
	)
	return nil
}

// MergeMode rebuilds the aligned bucket table and exits.
func (a *App) MergeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting merge mode")

	n, err := deps.Analysis.Merge(ctx)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	a.logger.InfoContext(ctx, "merge mode complete", slog.Int64("buckets", n))
	return nil
}

type backtestSummary struct {
	ZThreshold    float64 `json:"z_threshold"`
	TradeSize     float64 `json:"trade_size"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalProfit   float64 `json:"total_profit"`
	AvgProfit     float64 `json:"avg_profit"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	FinalEquity   float64 `json:"final_equity"`
}

// BacktestMode loads the stored signals, runs one simulation with the
// configured defaults and prints the statistics to stdout as JSON.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backtest mode")

	if err := deps.Dataset.Reload(ctx); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	req := deps.Backtest.DefaultRequest()
	res, err := deps.Backtest.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	summary := backtestSummary{
		ZThreshold:    req.ZThreshold,
		TradeSize:     req.TradeSize,
		TotalTrades:   res.TotalTrades,
		WinningTrades: res.WinningTrades,
		WinRate:       res.WinRate,
		TotalProfit:   res.TotalProfit,
		AvgProfit:     res.AvgProfit,
		MaxDrawdown:   res.MaxDrawdown,
		SharpeRatio:   res.SharpeRatio,
	}
	if n := len(res.EquityCurve); n > 0 {
		summary.FinalEquity = res.EquityCurve[n-1].Equity
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("backtest: write result: %w", err)
	}
	return nil
}

// ServerMode loads the dataset and serves the HTTP API until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	if err := deps.Dataset.Reload(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode merges and analyses once, then serves the HTTP API while
// re-running both on the configured interval.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	a.refresh(ctx, deps)
	if deps.Dataset.LoadedAt().IsZero() {
		if err := deps.Dataset.Reload(ctx); err != nil {
			return fmt.Errorf("full: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)

	if interval := a.cfg.Analysis.Interval.Duration; interval > 0 {
		g.Go(func() error {
			ticker := deps.Clock.Ticker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.refresh(ctx, deps)
				}
			}
		})
	} else {
		a.logger.InfoContext(ctx, "full mode: analysis interval not set, detection runs only on demand")
	}

	return g.Wait()
}

// refresh merges buckets and runs detection. Failures are logged so that the
// loop keeps serving the previous dataset; a held lock means another instance
// is already doing the work.
func (a *App) refresh(ctx context.Context, deps *Dependencies) {
	if _, err := deps.Analysis.Merge(ctx); err != nil {
		a.logRefreshError(ctx, "merge", err)
		return
	}
	if _, err := deps.Analysis.Run(ctx); err != nil {
		a.logRefreshError(ctx, "analysis", err)
	}
}

func (a *App) logRefreshError(ctx context.Context, step string, err error) {
	if errors.Is(err, domain.ErrLockHeld) {
		a.logger.InfoContext(ctx, "refresh skipped, lock held elsewhere", slog.String("step", step))
		return
	}
	a.logger.ErrorContext(ctx, "refresh failed",
		slog.String("step", step),
		slog.String("error", err.Error()),
	)
}

// startHTTPServer adds an HTTP server goroutine to the given errgroup. The
// server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.Dataset, deps.Clock, a.logger),
		Data:     handler.NewDataHandler(deps.Dataset, a.logger),
		Result:   handler.NewResultHandler(deps.Backtest, a.logger),
		Signals:  handler.NewSignalHandler(deps.Dataset, deps.Analysis, a.logger),
		Analysis: handler.NewAnalysisHandler(deps.Analysis, deps.Dataset, a.logger),
		Exports:  handler.NewExportHandler(deps.Exports, a.logger),
		Metrics:  deps.Metrics.Handler(),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
