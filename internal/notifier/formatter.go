package notifier

import (
	"fmt"
	"strings"

	"github.com/DevZro/StockBot/internal/model"
	"github.com/DevZro/StockBot/internal/updater"
)

// FormatDailyReport formats one cycle's outcome into a Telegram message.
func FormatDailyReport(symbol string, out updater.Outcome, st model.PredictionStats) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>StockBot</b> | %s | %s\n\n", symbol, out.Date))

	switch out.Status {
	case updater.StatusAlreadyUpToDate:
		b.WriteString("No new bar today, series already up to date.\n")
	case updater.StatusInsufficientHistory:
		b.WriteString("Bar appended; not enough history to score yet.\n")
	case updater.StatusFailed:
		b.WriteString(fmt.Sprintf("⚠️ Cycle failed at stage %s: %s\n", out.Stage, out.Message))
	default:
		if out.Probability != nil {
			b.WriteString(fmt.Sprintf("Up-day probability: %.3f\n", *out.Probability))
		}
		if out.Signal == 1 {
			b.WriteString("Signal: <b>BUY</b>\n")
		} else {
			b.WriteString("Signal: NO BUY\n")
		}
	}

	b.WriteString(fmt.Sprintf("\nSignals issued: %d | correct: %d | win rate: %.1f%%\n",
		st.TotalSignalsIssued, st.SignalsCorrect, st.WinRate()*100))

	return b.String()
}
