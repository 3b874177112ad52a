package billing

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultChannel is reported for settlements without a recognisable receipt code.
const DefaultChannel = "Counter"

// MatchKind selects how a rule's pattern is compared with a receipt code.
type MatchKind string

const (
	MatchPrefix   MatchKind = "prefix"
	MatchContains MatchKind = "contains"
	MatchExact    MatchKind = "exact"
	MatchRegexp   MatchKind = "regexp"
)

// ParseMatchKind validates a match kind name.
func ParseMatchKind(s string) (MatchKind, error) {
	switch k := MatchKind(strings.ToLower(strings.TrimSpace(s))); k {
	case MatchPrefix, MatchContains, MatchExact, MatchRegexp:
		return k, nil
	}
	return "", fmt.Errorf("unknown match kind %q", s)
}

// Rule maps receipt codes matching Pattern to Channel.
type Rule struct {
	Kind    MatchKind `json:"kind" mapstructure:"kind"`
	Pattern string    `json:"pattern" mapstructure:"pattern"`
	Channel string    `json:"channel" mapstructure:"channel"`
}

// DefaultRules is the legacy receipt-code table. Order matters: the first
// matching rule wins, so "Vn" must stay ahead of "V" and the BIDV prefix
// ahead of the BIDV substring rule.
func DefaultRules() []Rule {
	return []Rule{
		{Kind: MatchPrefix, Pattern: "Vn", Channel: "VNPay"},
		{Kind: MatchPrefix, Pattern: "VTB", Channel: "VietinBank"},
		{Kind: MatchPrefix, Pattern: "VCB", Channel: "Vietcombank"},
		{Kind: MatchPrefix, Pattern: "V", Channel: "Viettel Money"},
		{Kind: MatchPrefix, Pattern: "MM", Channel: "MoMo"},
		{Kind: MatchPrefix, Pattern: "MB", Channel: "MB Bank"},
		{Kind: MatchPrefix, Pattern: "AGR", Channel: "Agribank"},
		{Kind: MatchPrefix, Pattern: "BIDV", Channel: "BIDV"},
		{Kind: MatchContains, Pattern: "BIDV", Channel: "BIDV Smart Banking"},
		{Kind: MatchContains, Pattern: "ZLP", Channel: "ZaloPay"},
		{Kind: MatchPrefix, Pattern: "PY", Channel: "Payoo"},
		{Kind: MatchRegexp, Pattern: `^[0-9]{6,}$`, Channel: "Bank Transfer"},
	}
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

func (r compiledRule) matches(code string) bool {
	switch r.Kind {
	case MatchPrefix:
		return strings.HasPrefix(code, r.Pattern)
	case MatchContains:
		return strings.Contains(code, r.Pattern)
	case MatchExact:
		return code == r.Pattern
	case MatchRegexp:
		return r.re.MatchString(code)
	}
	return false
}

// Classifier attributes a receipt code to a payment channel by walking an
// ordered rule list. It is immutable and safe for concurrent use.
type Classifier struct {
	rules    []compiledRule
	fallback string
}

// NewClassifier compiles rules in the given order. An empty fallback means
// DefaultChannel. Duplicate or overlapping rules are kept as given.
func NewClassifier(rules []Rule, fallback string) (*Classifier, error) {
	const op = "NewClassifier"

	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultChannel
	}

	c := &Classifier{rules: make([]compiledRule, 0, len(rules)), fallback: fallback}
	for i, r := range rules {
		kind, err := ParseMatchKind(string(r.Kind))
		if err != nil {
			return nil, fmt.Errorf("%s: rule %d: %w", op, i+1, err)
		}
		if r.Pattern == "" || strings.TrimSpace(r.Channel) == "" {
			return nil, fmt.Errorf("%s: rule %d needs a pattern and a channel", op, i+1)
		}

		cr := compiledRule{Rule: Rule{Kind: kind, Pattern: r.Pattern, Channel: r.Channel}}
		if kind == MatchRegexp {
			cr.re, err = regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%s: rule %d: %w", op, i+1, err)
			}
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// DefaultClassifier returns a classifier over DefaultRules.
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultRules(), DefaultChannel)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the channel of the first rule matching receiptCode, or the
// fallback channel when the code is absent, empty or unmatched.
func (c *Classifier) Classify(receiptCode *string) string {
	if receiptCode == nil || *receiptCode == "" {
		return c.fallback
	}
	for _, r := range c.rules {
		if r.matches(*receiptCode) {
			return r.Channel
		}
	}
	return c.fallback
}

// Rules returns the rules in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Rule
	}
	return out
}

// Fallback returns the channel used when no rule matches.
func (c *Classifier) Fallback() string {
	return c.fallback
}
