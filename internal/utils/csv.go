package utils

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/app"
)

// WriteTradesCSV writes trade rows with their resolved P&L as CSV. Nullable
// fields render as empty cells, never as zeroes.
func WriteTradesCSV(w io.Writer, trades []*app.TradeView) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Write header
	writer.Write([]string{
		"id", "external_id", "account_id", "source", "symbol", "asset_type",
		"direction", "quantity", "entry_price", "exit_price",
		"entry_time", "exit_time", "status", "pnl", "pnl_percent",
	})

	for _, t := range trades {
		var exitPrice, exitTime, pnl, pnlPercent string
		if t.ExitPrice != nil {
			exitPrice = strconv.FormatFloat(*t.ExitPrice, 'f', -1, 64)
		}
		if t.ExitTime != nil {
			exitTime = t.ExitTime.Format(time.RFC3339)
		}
		if t.Resolved != nil {
			pnl = strconv.FormatFloat(t.Resolved.Pnl, 'f', -1, 64)
			if t.Resolved.PnlPercent != nil {
				pnlPercent = strconv.FormatFloat(*t.Resolved.PnlPercent, 'f', -1, 64)
			}
		}
		writer.Write([]string{
			strconv.FormatInt(t.ID, 10),
			t.ExternalID,
			strconv.FormatInt(t.AccountID, 10),
			string(t.Source),
			t.Symbol,
			string(t.AssetType),
			string(t.Direction),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			exitPrice,
			t.EntryTime.Format(time.RFC3339),
			exitTime,
			string(t.Status),
			pnl,
			pnlPercent,
		})
	}
	return writer.Error()
}
