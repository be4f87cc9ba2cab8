package bot

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-analyze/charts"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

var errNothingToChart = errors.New("nothing to chart")

// GenerateStatusChart creates a pie chart of expense counts per status.
// Statuses with no expenses are left out. Returns PNG image as bytes.
func GenerateStatusChart(counts map[models.ExpenseStatus]int) ([]byte, error) {
	var (
		names  []string
		values []float64
	)
	for _, st := range models.ExpenseStatuses {
		if n := counts[st]; n > 0 {
			names = append(names, fmt.Sprintf("%s (%d)", st, n))
			values = append(values, float64(n))
		}
	}
	return renderPie("Expenses by Status", names, values)
}

// GenerateCategoryChart creates a pie chart of converted amounts per category.
func GenerateCategoryChart(expenses []models.Expense, period string) ([]byte, error) {
	totals := aggregateByCategory(expenses)

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]float64, 0, len(names))
	for _, name := range names {
		values = append(values, totals[name].InexactFloat64())
	}
	return renderPie(fmt.Sprintf("Spend by Category - %s", period), names, values)
}

func renderPie(title string, names []string, values []float64) ([]byte, error) {
	if len(values) == 0 {
		return nil, errNothingToChart
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{Text: title}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

// aggregateByCategory totals converted amounts per category. Rejected
// expenses are not spend and are skipped.
func aggregateByCategory(expenses []models.Expense) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		if e.Status == models.ExpenseStatusRejected {
			continue
		}
		name := e.Category
		if name == "" {
			name = "Uncategorized"
		}
		totals[name] = totals[name].Add(e.ConvertedAmount)
	}
	return totals
}

// monthRange returns the first instant of now's month and of the next one.
func monthRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

// generateChartFilename creates filenames like "chart_status_2026-01-31.png".
func generateChartFilename(kind string, now time.Time) string {
	return fmt.Sprintf("chart_%s_%s.png", kind, now.Format(time.DateOnly))
}
