// Package report は月次統計を端末向けのテキストに整形する。
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/habitman/internal/analytics"
)

// lowPercent 未満の達成率は警告色で表示する。
const lowPercent = 40

// Renderer は出力先の端末能力に合わせたスタイルを保持する。
type Renderer struct {
	title  lipgloss.Style
	header lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style
	good   lipgloss.Style
	warn   lipgloss.Style
}

// New はwに書き込むためのRendererを生成する。
// wが端末でない場合は装飾なしのテキストになる。
func New(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		title: r.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),
		header: r.NewStyle().
			Foreground(lipgloss.Color("241")).
			Underline(true),
		label: r.NewStyle().
			Width(24),
		muted: r.NewStyle().
			Foreground(lipgloss.Color("240")),
		good: r.NewStyle().
			Foreground(lipgloss.Color("42")),
		warn: r.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true),
	}
}

// Render は月次統計をテキストにする。
func (r *Renderer) Render(st *analytics.MonthStats) string {
	var b strings.Builder

	b.WriteString(r.title.Render("Habit report " + st.Month))
	b.WriteString("\n")
	b.WriteString("Overall: " + r.percent(st.OverallPercent))
	b.WriteString("\n\n")

	if len(st.HabitCounts) == 0 {
		b.WriteString(r.muted.Render("この月の習慣はありません"))
		b.WriteString("\n")
	} else {
		b.WriteString(r.header.Render("Habit"))
		b.WriteString("\n")
		for _, hc := range st.HabitCounts {
			b.WriteString(r.label.Render(hc.Name))
			b.WriteString(fmt.Sprintf("%3d  ", hc.Count))
			b.WriteString(r.good.Render(strings.Repeat("█", hc.Count)))
			b.WriteString("\n")
		}
	}

	if len(st.Weekly) > 0 {
		b.WriteString("\n")
		b.WriteString(r.header.Render("Weekly"))
		b.WriteString("\n")
		for i, p := range st.Weekly {
			b.WriteString(r.label.Render(fmt.Sprintf("Week %d", i+1)))
			b.WriteString(r.percent(p))
			b.WriteString("\n")
		}
	}

	if len(st.DailyTotals) > 0 {
		totals := make([]string, len(st.DailyTotals))
		for i, n := range st.DailyTotals {
			totals[i] = fmt.Sprint(n)
		}
		b.WriteString("\n")
		b.WriteString(r.header.Render("Daily"))
		b.WriteString("\n")
		b.WriteString(r.muted.Render(strings.Join(totals, " ")))
		b.WriteString("\n")
	}

	return b.String()
}

func (r *Renderer) percent(p int) string {
	s := fmt.Sprintf("%d%%", p)
	if p < lowPercent {
		return r.warn.Render(s)
	}
	return r.good.Render(s)
}

// Write は月次統計をwに書き込む。
func Write(w io.Writer, st *analytics.MonthStats) error {
	_, err := io.WriteString(w, New(w).Render(st))
	return err
}
