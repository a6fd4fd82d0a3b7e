package category

import (
	"fmt"
	"strings"

	"bills/internal/cache"
	"bills/internal/core"
	"bills/internal/textutil"
)

// Pass is one stage of rule matching.
type Pass string

const (
	// PassExact matches when a merchant alias equals the merchant.
	PassExact Pass = "exact"
	// PassMerchant matches a merchant alias or expression inside the merchant.
	PassMerchant Pass = "merchant"
	// PassText matches keywords in item and note. Merchant-only rules
	// search merchant, item and note together.
	PassText Pass = "text"
)

// DefaultOrder is the pass order used when none is configured.
var DefaultOrder = []Pass{PassExact, PassMerchant, PassText}

// ParseOrder converts configured pass names into passes.
func ParseOrder(names []string) ([]Pass, error) {
	if len(names) == 0 {
		return DefaultOrder, nil
	}
	order := make([]Pass, 0, len(names))
	seen := make(map[Pass]bool, len(names))
	for _, n := range names {
		p := Pass(strings.ToLower(strings.TrimSpace(n)))
		switch p {
		case PassExact, PassMerchant, PassText:
		default:
			return nil, fmt.Errorf("unknown match pass %q", n)
		}
		if seen[p] {
			return nil, fmt.Errorf("match pass %q listed more than once", n)
		}
		seen[p] = true
		order = append(order, p)
	}
	return order, nil
}

// Resolution is the outcome of resolving one transaction.
type Resolution struct {
	Category    string
	Subcategory string
	// Pass is empty when no rule matched.
	Pass Pass
	// RuleLine is the mapping file line of the matching rule, or 0.
	RuleLine int
}

// Matched reports whether a rule produced the resolution.
func (r Resolution) Matched() bool {
	return r.Pass != ""
}

type Options struct {
	Order     []Pass
	CacheSize int
}

// Resolver assigns categories. It is safe for concurrent use.
type Resolver struct {
	rules *RuleSet
	order []Pass
	memo  cache.Cache[Resolution]
}

func NewResolver(rules *RuleSet, opts Options) *Resolver {
	if rules == nil {
		rules = &RuleSet{}
	}
	order := opts.Order
	if len(order) == 0 {
		order = DefaultOrder
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 4096
	}
	return &Resolver{
		rules: rules,
		order: order,
		memo:  cache.NewLRUCache[Resolution](size, 0),
	}
}

// Rules returns the rule set the resolver matches against.
func (r *Resolver) Rules() *RuleSet {
	return r.rules
}

// CacheStats reports memoization counters.
func (r *Resolver) CacheStats() cache.Stats {
	return r.memo.Stats()
}

// Resolve returns the category for a transaction. Unmatched input falls
// back to core.Uncategorized with an empty subcategory.
func (r *Resolver) Resolve(merchant, item, note string) Resolution {
	in := input{
		merchant: textutil.Normalize(merchant),
		text:     strings.TrimSpace(textutil.Normalize(item) + " " + textutil.Normalize(note)),
	}
	key := in.merchant + "\x00" + in.text
	if res, ok := r.memo.Get(key); ok {
		return res
	}

	res := r.resolve(in)
	r.memo.Set(key, res)
	return res
}

type input struct {
	merchant string
	text     string // item and note
}

func (in input) full() string {
	return strings.TrimSpace(in.merchant + " " + in.text)
}

func (r *Resolver) resolve(in input) Resolution {
	for _, pass := range r.order {
		for i := range r.rules.Rules {
			rule := &r.rules.Rules[i]
			if rule.matches(pass, in) {
				return Resolution{
					Category:    rule.Category,
					Subcategory: rule.Subcategory,
					Pass:        pass,
					RuleLine:    rule.Line,
				}
			}
		}
	}
	return Resolution{Category: core.Uncategorized}
}

func (rule *Rule) matches(pass Pass, in input) bool {
	hasMerchant := !rule.merchant.empty()
	hasKeyword := !rule.keyword.empty()

	// The keyword condition always applies to item and note.
	if hasKeyword && !rule.keyword.within(in.text) {
		return false
	}

	switch pass {
	case PassExact:
		return hasMerchant && rule.merchant.re == nil && rule.merchant.equals(in.merchant)
	case PassMerchant:
		return hasMerchant && in.merchant != "" && rule.merchant.within(in.merchant)
	case PassText:
		if !hasMerchant {
			return hasKeyword
		}
		if hasKeyword {
			return rule.merchant.within(in.merchant)
		}
		return rule.merchant.within(in.full())
	}
	return false
}
