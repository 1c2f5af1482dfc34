package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders strategy rows as CSV string.
func RenderCSV(rows []StrategyRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("strategy_id,pnl_sol,roi_pct,win_rate_pct,wins,losses,trades,")
	sb.WriteString("tokens_total,tokens_skipped,biggest_win_sol,biggest_loss_sol,max_drawdown_pct\n")

	// Rows
	for _, s := range rows {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.4f,%.4f,%d,%d,%d,%d,%d,%.6f,%.6f,%.4f\n",
			s.StrategyID,
			s.PnLSOL,
			s.ROIPct,
			s.WinRatePct,
			s.Wins,
			s.Losses,
			s.Trades,
			s.TokensTotal,
			s.TokensSkipped,
			s.BiggestWinSOL,
			s.BiggestLossSOL,
			s.MaxDrawdownPct,
		))
	}

	return sb.String()
}
