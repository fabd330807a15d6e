package bankhub

import (
	"slices"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Criteria reports whether an entity belongs to a view.
type Criteria[T any] func(entity T) bool

// Filter returns the items matching c in their original order.
func Filter[T any](items []T, c Criteria[T]) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if c(it) {
			out = append(out, it)
		}
	}
	return out
}

func BalanceAbove(threshold decimal.Decimal) Criteria[Account] {
	return func(a Account) bool {
		return a.Balance.GreaterThan(threshold)
	}
}

func ForAccount(id snowflake.ID) Criteria[Transaction] {
	return func(t Transaction) bool {
		return t.AcctID == id
	}
}

// SortByBalance returns a copy of accts ordered by ascending balance, then id.
func SortByBalance(accts []Account) []Account {
	sorted := slices.Clone(accts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Balance.Cmp(sorted[j].Balance); c != 0 {
			return c < 0
		}
		return sorted[i].AcctID < sorted[j].AcctID
	})
	return sorted
}

// Owners returns the distinct owner names in lexical order.
func Owners(accts []Account) []string {
	seen := make(map[string]struct{}, len(accts))
	owners := make([]string, 0, len(accts))
	for _, a := range accts {
		if _, ok := seen[a.Owner]; ok {
			continue
		}
		seen[a.Owner] = struct{}{}
		owners = append(owners, a.Owner)
	}
	sort.Strings(owners)
	return owners
}

func GroupByAccount(txns []Transaction) map[snowflake.ID][]Transaction {
	groups := make(map[snowflake.ID][]Transaction)
	for _, t := range txns {
		groups[t.AcctID] = append(groups[t.AcctID], t)
	}
	return groups
}
