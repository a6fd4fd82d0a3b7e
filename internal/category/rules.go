// Package category maps raw transactions to a (category, subcategory) pair
// using the user-maintained mapping table.
package category

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"bills/internal/textutil"
)

// Rule is one row of the mapping table.
type Rule struct {
	Priority    int    `yaml:"priority"`
	Merchant    string `yaml:"merchant"`
	Keyword     string `yaml:"keyword"`
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
	Regex       bool   `yaml:"regex"`

	// Line is the 1-based source line of the rule.
	Line int `yaml:"-"`

	merchant matcher
	keyword  matcher
}

// MappingError describes a rule that was skipped while loading.
type MappingError struct {
	Line   int
	Reason string
}

func (e MappingError) Error() string {
	if e.Line == 0 {
		return e.Reason
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// RuleSet is the compiled mapping table, ordered by descending priority
// with ties kept in file order.
type RuleSet struct {
	Source string
	Rules  []Rule
}

// Len returns the number of usable rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rules)
}

var columns = []string{"priority", "merchant", "keyword", "category", "subcategory", "regex"}

// LoadRules reads a mapping file. CSV files are decoded from UTF-8 (with or
// without BOM) or GB18030; .yaml and .yml files hold a list of rules.
//
// A missing file yields an empty rule set and a single MappingError so the
// run can continue with every transaction uncategorized.
func LoadRules(path string) (*RuleSet, []MappingError, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &RuleSet{Source: path}, []MappingError{{Reason: fmt.Sprintf("mapping file %s not found, all transactions uncategorized", path)}}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	data, err := textutil.ToUTF8(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode mapping file %s: %w", path, err)
	}

	var (
		rules []Rule
		errs  []MappingError
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		rules, err = parseYAML(data)
	default:
		rules, errs, err = parseCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}

	rs, compileErrs := NewRuleSet(rules)
	rs.Source = path
	return rs, append(errs, compileErrs...), nil
}

// NewRuleSet validates and compiles rules. Invalid rules are reported and
// left out of the set.
func NewRuleSet(rules []Rule) (*RuleSet, []MappingError) {
	var (
		kept []Rule
		errs []MappingError
	)
	for _, r := range rules {
		r.Merchant = strings.TrimSpace(r.Merchant)
		r.Keyword = strings.TrimSpace(r.Keyword)
		r.Category = strings.TrimSpace(r.Category)
		r.Subcategory = strings.TrimSpace(r.Subcategory)

		if r.Category == "" {
			errs = append(errs, MappingError{Line: r.Line, Reason: "missing category"})
			continue
		}
		if r.Merchant == "" && r.Keyword == "" {
			errs = append(errs, MappingError{Line: r.Line, Reason: "rule has neither merchant nor keyword"})
			continue
		}

		var err error
		if r.merchant, err = compile(r.Merchant, r.Regex); err != nil {
			errs = append(errs, MappingError{Line: r.Line, Reason: fmt.Sprintf("invalid merchant pattern %q: %v", r.Merchant, err)})
			continue
		}
		if r.keyword, err = compile(r.Keyword, r.Regex); err != nil {
			errs = append(errs, MappingError{Line: r.Line, Reason: fmt.Sprintf("invalid keyword pattern %q: %v", r.Keyword, err)})
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Priority > kept[j].Priority
	})
	return &RuleSet{Rules: kept}, errs
}

func parseCSV(r io.Reader) ([]Rule, []MappingError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		rules  []Rule
		errs   []MappingError
		index  map[string]int
		header = true
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}

		if header {
			header = false
			if idx, ok := headerIndex(rec); ok {
				index = idx
				continue
			}
		}

		if index != nil {
			rules = append(rules, namedRule(rec, index, line))
			continue
		}
		if len(rec) < 2 {
			errs = append(errs, MappingError{Line: line, Reason: "expected at least key and category"})
			continue
		}
		rule := Rule{Merchant: rec[0], Category: rec[1], Line: line}
		if len(rec) > 2 {
			rule.Subcategory = rec[2]
		}
		rules = append(rules, rule)
	}
	return rules, errs, nil
}

func headerIndex(rec []string) (map[string]int, bool) {
	idx := make(map[string]int, len(rec))
	for i, cell := range rec {
		name := strings.ToLower(strings.TrimSpace(cell))
		if name == "key" {
			name = "merchant"
		}
		for _, c := range columns {
			if name == c {
				idx[c] = i
			}
		}
	}
	_, ok := idx["category"]
	return idx, ok
}

func namedRule(rec []string, index map[string]int, line int) Rule {
	get := func(col string) string {
		if i, ok := index[col]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	return Rule{
		Priority:    parsePriority(get("priority")),
		Merchant:    get("merchant"),
		Keyword:     get("keyword"),
		Category:    get("category"),
		Subcategory: get("subcategory"),
		Regex:       parseFlag(get("regex")),
		Line:        line,
	}
}

// parsePriority accepts integers and spreadsheet floats like "10.0".
func parsePriority(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseFlag(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseYAML(data []byte) ([]Rule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	// Accept both a bare list and a {rules: [...]} document.
	if root.Kind == yaml.MappingNode {
		var list *yaml.Node
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "rules" {
				list = root.Content[i+1]
			}
		}
		if list == nil {
			return nil, errors.New("expected a list of rules or a 'rules' key")
		}
		root = list
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a list of rules", root.Line)
	}

	rules := make([]Rule, 0, len(root.Content))
	for _, item := range root.Content {
		var r Rule
		if err := item.Decode(&r); err != nil {
			return nil, fmt.Errorf("line %d: %w", item.Line, err)
		}
		r.Line = item.Line
		rules = append(rules, r)
	}
	return rules, nil
}

// matcher holds either alias alternatives or a compiled expression.
type matcher struct {
	alts []string
	re   *regexp.Regexp
}

func compile(pattern string, isRegex bool) (matcher, error) {
	if pattern == "" {
		return matcher{}, nil
	}
	if isRegex {
		re, err := regexp.Compile("(?i)" + textutil.Clean(pattern))
		if err != nil {
			return matcher{}, err
		}
		return matcher{re: re}, nil
	}
	var alts []string
	for _, a := range strings.Split(textutil.Normalize(pattern), "|") {
		if a = strings.TrimSpace(a); a != "" {
			alts = append(alts, a)
		}
	}
	if len(alts) == 0 {
		return matcher{}, errors.New("no aliases")
	}
	return matcher{alts: alts}, nil
}

func (m matcher) empty() bool {
	return m.re == nil && len(m.alts) == 0
}

func (m matcher) equals(s string) bool {
	for _, a := range m.alts {
		if a == s {
			return true
		}
	}
	return false
}

func (m matcher) within(s string) bool {
	if m.re != nil {
		return m.re.MatchString(s)
	}
	for _, a := range m.alts {
		if strings.Contains(s, a) {
			return true
		}
	}
	return false
}
