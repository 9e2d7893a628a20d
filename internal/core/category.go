package core

// Category is one of a fixed, closed set of expense categories.
type Category string

const (
	Food          Category = "Food"
	Travel        Category = "Travel"
	Shopping      Category = "Shopping"
	Bills         Category = "Bills"
	Entertainment Category = "Entertainment"
	Others        Category = "Others"

	// CategoryNone is returned by HighestCategory when nothing has been spent.
	CategoryNone Category = "none"

	// CategoryAll disables category filtering.
	CategoryAll = "all"
)

// CategoryInfo is the static presentation and matching data of a category.
type CategoryInfo struct {
	Name     Category `json:"name"`
	Color    string   `json:"color"`
	Icon     string   `json:"icon"`
	Keywords []string `json:"keywords"`
}

// categoryTable is in declaration order; that order decides categorization
// ties and the order of every aggregate.
var categoryTable = [...]CategoryInfo{
	{
		Name:     Food,
		Color:    "#ff6b6b",
		Icon:     "fas fa-utensils",
		Keywords: []string{"pizza", "burger", "restaurant", "coffee", "lunch", "dinner", "breakfast", "groceries", "food", "eat", "meal", "cafe"},
	},
	{
		Name:     Travel,
		Color:    "#1dd1a1",
		Icon:     "fas fa-car",
		Keywords: []string{"uber", "lyft", "taxi", "fuel", "gas", "flight", "train", "bus", "metro", "hotel", "travel", "trip", "parking"},
	},
	{
		Name:     Shopping,
		Color:    "#54a0ff",
		Icon:     "fas fa-shopping-bag",
		Keywords: []string{"amazon", "flipkart", "walmart", "target", "mall", "store", "shop", "purchase", "buy", "clothes", "shoes"},
	},
	{
		Name:     Bills,
		Color:    "#5f27cd",
		Icon:     "fas fa-file-invoice-dollar",
		Keywords: []string{"electric", "water", "internet", "phone", "rent", "mortgage", "insurance", "bill", "subscription"},
	},
	{
		Name:     Entertainment,
		Color:    "#feca57",
		Icon:     "fas fa-film",
		Keywords: []string{"netflix", "spotify", "movie", "concert", "game", "theater", "music", "sports", "gym"},
	},
	{
		Name:  Others,
		Color: "#c8d6e5",
		Icon:  "fas fa-ellipsis-h",
	},
}

// Categories returns a copy of the category table in declaration order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryTable))
	for i, c := range categoryTable {
		c.Keywords = append([]string(nil), c.Keywords...)
		out[i] = c
	}
	return out
}

// Lookup returns the table entry for c.
func Lookup(c Category) (CategoryInfo, bool) {
	for _, info := range categoryTable {
		if info.Name == c {
			info.Keywords = append([]string(nil), info.Keywords...)
			return info, true
		}
	}
	return CategoryInfo{}, false
}

func (c Category) IsValid() bool {
	_, ok := Lookup(c)
	return ok
}

func (c Category) String() string {
	return string(c)
}

// Color returns the display color, or the fallback color for unknown values.
func (c Category) Color() string {
	if info, ok := Lookup(c); ok {
		return info.Color
	}
	return categoryTable[len(categoryTable)-1].Color
}

// Icon returns the display icon class name.
func (c Category) Icon() string {
	if info, ok := Lookup(c); ok {
		return info.Icon
	}
	return categoryTable[len(categoryTable)-1].Icon
}
