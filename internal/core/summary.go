package core

import "math/bits"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
}

// Totals holds one entry per category, in declaration order, zeros included.
type Totals []CategoryAmount

// Filter selects expenses by category and inclusive date range.
// An empty or "all" Category and zero dates disable the respective check.
type Filter struct {
	Category string
	Start    Date
	End      Date
}

// ChartSlice is one pie-chart wedge.
type ChartSlice struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
	Color    string   `json:"color"`
	Icon     string   `json:"icon"`
	Percent  int      `json:"percent"`
}

// Summary is the aggregate view over a set of expenses.
type Summary struct {
	Count      int              `json:"count"`
	Total      Money            `json:"total"`
	ByCategory []CategoryAmount `json:"by_category"`
	Highest    CategoryAmount   `json:"highest"`
	Chart      []ChartSlice     `json:"chart"`
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Expense) bool {
	if f.Category != "" && f.Category != CategoryAll && string(e.Category) != f.Category {
		return false
	}
	if !f.Start.IsZero() && e.Date.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Date.After(f.End) {
		return false
	}
	return true
}

// FilterExpenses returns the expenses matching f, preserving order.
func FilterExpenses(expenses []Expense, f Filter) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// TotalsByCategory sums amounts per category. Expenses carrying a category
// outside the fixed set are not counted.
func TotalsByCategory(expenses []Expense) Totals {
	totals := make(Totals, len(categoryTable))
	index := make(map[Category]int, len(categoryTable))
	for i, info := range categoryTable {
		totals[i] = CategoryAmount{Category: info.Name}
		index[info.Name] = i
	}
	for _, e := range expenses {
		if i, ok := index[e.Category]; ok {
			totals[i].Amount = totals[i].Amount.Add(e.Amount)
		}
	}
	return totals
}

// Get returns the total recorded for c.
func (t Totals) Get(c Category) Money {
	for _, ca := range t {
		if ca.Category == c {
			return ca.Amount
		}
	}
	return Money{}
}

// NonZero drops categories with nothing spent.
func (t Totals) NonZero() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(t))
	for _, ca := range t {
		if ca.Amount.Cents > 0 {
			out = append(out, ca)
		}
	}
	return out
}

// Sum is the total across every category in t.
func (t Totals) Sum() Money {
	var sum Money
	for _, ca := range t {
		sum = sum.Add(ca.Amount)
	}
	return sum
}

// HighestCategory returns the category with the strictly greatest total.
// Ties keep the earlier category. With nothing spent it returns CategoryNone.
func HighestCategory(t Totals) CategoryAmount {
	best := CategoryAmount{Category: CategoryNone}
	for _, ca := range t {
		if ca.Amount.Cents > best.Amount.Cents {
			best = ca
		}
	}
	return best
}

// Total sums every expense amount.
func Total(expenses []Expense) Money {
	var sum Money
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// ChartSlices turns totals into pie-chart wedges for non-zero categories.
// Percentages are rounded half-up against the sum of the wedges.
func ChartSlices(t Totals) []ChartSlice {
	rows := t.NonZero()
	sum := Totals(rows).Sum().Cents
	out := make([]ChartSlice, 0, len(rows))
	if sum <= 0 {
		return out
	}
	for _, ca := range rows {
		out = append(out, ChartSlice{
			Category: ca.Category,
			Amount:   ca.Amount,
			Color:    ca.Category.Color(),
			Icon:     ca.Category.Icon(),
			Percent:  percentOf(ca.Amount.Cents, sum),
		})
	}
	return out
}

// percentOf returns part/whole as a whole percentage rounded half-up. The
// product is taken in 128 bits so large totals cannot overflow.
func percentOf(part, whole int64) int {
	if part <= 0 {
		return 0
	}
	if part >= whole {
		return 100
	}
	hi, lo := bits.Mul64(uint64(part), 100)
	lo, carry := bits.Add64(lo, uint64(whole/2), 0)
	q, _ := bits.Div64(hi+carry, lo, uint64(whole))
	return int(q)
}

// Summarize builds the summary panel data for expenses.
func Summarize(expenses []Expense) Summary {
	totals := TotalsByCategory(expenses)
	return Summary{
		Count:      len(expenses),
		Total:      Total(expenses),
		ByCategory: totals.NonZero(),
		Highest:    HighestCategory(totals),
		Chart:      ChartSlices(totals),
	}
}
