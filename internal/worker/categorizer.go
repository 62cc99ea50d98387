package worker

import (
	"context"
	"strings"

	"payflow/internal/core"
)

// Categorizer assigns a spending category to a completed transfer. The
// production implementation may call an external model service; the
// keyword table below is the shipped fallback.
type Categorizer interface {
	Categorize(ctx context.Context, description, merchant string, amount core.Money) (category string, confidence float64, err error)
}

// Categories the enrichment pipeline can assign.
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Utilities",
	"Healthcare",
	"Education",
	"Travel",
	"Groceries",
	"Subscription",
	"Personal Care",
	"Savings",
	"Salary",
	"Other",
}

// KeywordCategorizer matches description and merchant text against a fixed
// keyword table.
type KeywordCategorizer struct{}

// keywordTable is checked in order; the first hit wins so results stay
// deterministic for text matching several entries.
var keywordTable = []struct {
	keyword  string
	category string
}{
	{"grocery", "Groceries"},
	{"groceries", "Groceries"},
	{"supermarket", "Groceries"},
	{"restaurant", "Food & Dining"},
	{"cafe", "Food & Dining"},
	{"lunch", "Food & Dining"},
	{"dinner", "Food & Dining"},
	{"pizza", "Food & Dining"},
	{"food", "Food & Dining"},
	{"uber", "Transportation"},
	{"taxi", "Transportation"},
	{"fuel", "Transportation"},
	{"petrol", "Transportation"},
	{"metro", "Transportation"},
	{"flight", "Travel"},
	{"hotel", "Travel"},
	{"train", "Travel"},
	{"netflix", "Subscription"},
	{"spotify", "Subscription"},
	{"subscription", "Subscription"},
	{"electricity", "Utilities"},
	{"water bill", "Utilities"},
	{"internet", "Utilities"},
	{"recharge", "Utilities"},
	{"pharmacy", "Healthcare"},
	{"hospital", "Healthcare"},
	{"doctor", "Healthcare"},
	{"medicine", "Healthcare"},
	{"course", "Education"},
	{"tuition", "Education"},
	{"school", "Education"},
	{"movie", "Entertainment"},
	{"cinema", "Entertainment"},
	{"game", "Entertainment"},
	{"amazon", "Shopping"},
	{"flipkart", "Shopping"},
	{"store", "Shopping"},
	{"shop", "Shopping"},
	{"salon", "Personal Care"},
	{"gym", "Personal Care"},
	{"salary", "Salary"},
	{"deposit", "Savings"},
}

func (KeywordCategorizer) Categorize(ctx context.Context, description, merchant string, amount core.Money) (string, float64, error) {
	haystack := strings.ToLower(description + " " + merchant)
	for _, entry := range keywordTable {
		if strings.Contains(haystack, entry.keyword) {
			return entry.category, 0.6, nil
		}
	}
	return "Other", 0.2, nil
}
