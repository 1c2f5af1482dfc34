package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Strategy Sweep Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Status: %s | Policy: %s\n\n", r.RunID, r.Status, r.Policy))
	if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Message: %s\n\n", r.Message))
	}

	// Run Summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Strategies | %d |\n", r.StrategyCount))
	sb.WriteString(fmt.Sprintf("| Tokens | %d |\n", r.TokenCount))
	sb.WriteString(fmt.Sprintf("| Initial Balance (lamports) | %d |\n", r.InitialBalance))
	sb.WriteString("\n")

	// Strategy Results
	sb.WriteString("## Strategy Results\n\n")
	if len(r.Strategies) > 0 {
		sb.WriteString("| Strategy | PnL (SOL) | ROI% | WinRate% | Wins | Losses | Trades | Tokens | Skipped | Best Win | Worst Loss | MaxDD% |\n")
		sb.WriteString("|----------|-----------|------|----------|------|--------|--------|--------|---------|----------|------------|-------|\n")
		for _, s := range r.Strategies {
			sb.WriteString(fmt.Sprintf("| %s | %.4f | %.2f | %.2f | %d | %d | %d | %d | %d | %.4f | %.4f | %.2f |\n",
				s.StrategyID, s.PnLSOL, s.ROIPct, s.WinRatePct,
				s.Wins, s.Losses, s.Trades, s.TokensTotal, s.TokensSkipped,
				s.BiggestWinSOL, s.BiggestLossSOL, s.MaxDrawdownPct))
		}
	} else {
		sb.WriteString("No strategy results available.\n")
	}
	sb.WriteString("\n")

	// Best Strategy Tokens
	sb.WriteString("## Best Strategy: Per-Token Detail\n\n")
	if len(r.BestTokens) > 0 {
		sb.WriteString("| Mint | Traded | Profit (SOL) | ROI% | Exit | Last Sell Reason | First Buy | Series Peak | Peak Capture% |\n")
		sb.WriteString("|------|--------|--------------|------|------|------------------|-----------|-------------|---------------|\n")
		for _, t := range r.BestTokens {
			traded := "no"
			if t.Traded {
				traded = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %.6f | %.2f | %s | %s | %.9f | %.9f | %.2f |\n",
				t.Mint, traded, t.ProfitSOL, t.ROIPct,
				t.ExitCode, t.LastSellReason,
				t.FirstBuyPrice, t.SeriesPeak, t.PeakCapture))
		}
	} else {
		sb.WriteString("No per-token detail available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
