package views

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pavelanni/flashquiz/internal/model"
)

const dateLayout = "2006-01-02 15:04"

func when(t time.Time) string {
	return humanize.Time(t)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func outcomeLabel(o model.Outcome) string {
	switch o {
	case model.OutcomeCorrect:
		return "✅ correct"
	case model.OutcomeIncorrect:
		return "❌ incorrect"
	case model.OutcomeNotUnderstood:
		return "⚠️ not understood"
	}
	return string(o)
}

func heardText(a model.Answer) string {
	if a.Recognized == "" {
		return "-"
	}
	return a.Recognized
}
