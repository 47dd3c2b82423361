package reporting

import (
	"fmt"
	"strings"
)

// RenderRankingsCSV renders optimizer rankings as CSV string.
func RenderRankingsCSV(rows []RankingRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("rank,params_id,run_id,max_trade_percent,stop_loss_percent,cooldown_minutes,")
	sb.WriteString("rsi_oversold,rsi_overbought,weights,")
	sb.WriteString("total_return,sharpe_ratio,max_drawdown,win_rate,total_trades,score\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%.6f,%.6f,%d,%.2f,%.2f,%s,%.6f,%.6f,%.6f,%.6f,%d,%.6f\n",
			r.Rank,
			r.ParamsID,
			r.RunID,
			r.MaxTradePercent,
			r.StopLossPercent,
			r.CooldownMinutes,
			r.RSIOversold,
			r.RSIOverbought,
			r.Weights,
			r.TotalReturn,
			r.SharpeRatio,
			r.MaxDrawdown,
			r.WinRate,
			r.TotalTrades,
			r.Score,
		))
	}

	return sb.String()
}
