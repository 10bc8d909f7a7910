package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pelissiernicolas/mail-ai-local/internal/fingerprint"
)

// Labels contributed by the matcher are capped at this count.
const maxHeuristicLabels = 3

// HeuristicRule maps one pattern to the labels it implies.
type HeuristicRule struct {
	Pattern string   `mapstructure:"pattern"`
	Labels  []string `mapstructure:"labels"`
}

type compiledHeuristic struct {
	rx     *regexp.Regexp
	labels []string
}

// HeuristicMatcher evaluates ordered sender and subject pattern tables
// against a message and produces a label set. Matching is pure and never
// fails; an empty result is a valid outcome.
type HeuristicMatcher struct {
	sender  []compiledHeuristic
	subject []compiledHeuristic
}

// NewHeuristicMatcher compiles the rule tables. Patterns are matched
// case-insensitively with search semantics.
func NewHeuristicMatcher(senderRules, subjectRules []HeuristicRule) (*HeuristicMatcher, error) {
	m := &HeuristicMatcher{}
	var err error
	if m.sender, err = compileHeuristics(senderRules); err != nil {
		return nil, fmt.Errorf("failed to compile sender heuristics: %w", err)
	}
	if m.subject, err = compileHeuristics(subjectRules); err != nil {
		return nil, fmt.Errorf("failed to compile subject heuristics: %w", err)
	}
	return m, nil
}

func compileHeuristics(rules []HeuristicRule) ([]compiledHeuristic, error) {
	compiled := make([]compiledHeuristic, 0, len(rules))
	for _, r := range rules {
		rx, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
		}
		compiled = append(compiled, compiledHeuristic{rx: rx, labels: r.Labels})
	}
	return compiled, nil
}

// Match returns the labels implied by the sender and subject tables, in
// first-seen order, deduplicated, capped at three entries. Sender rules
// are tested against the extracted email address and its domain part;
// subject rules against the normalized subject.
func (m *HeuristicMatcher) Match(sender, subject string) []string {
	addr := fingerprint.ExtractAddress(sender)
	domain := ""
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		domain = addr[i+1:]
	}
	normSubject := fingerprint.NormalizeSubject(subject)

	var labels []string
	seen := make(map[string]struct{})
	add := func(ls []string) {
		for _, l := range ls {
			if len(labels) >= maxHeuristicLabels {
				return
			}
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			labels = append(labels, l)
		}
	}

	for _, r := range m.sender {
		if r.rx.MatchString(addr) || r.rx.MatchString(domain) {
			add(r.labels)
		}
	}
	for _, r := range m.subject {
		if r.rx.MatchString(normSubject) {
			add(r.labels)
		}
	}
	return labels
}
