package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pelissiernicolas/mail-ai-local/internal/decision"
)

// CategoryOverrideReason is recorded when the category short-circuit fires.
const CategoryOverrideReason = "rule: ai category=promo/newsletter"

// OverrideRule is one user-authored entry of the ordered override list.
// The sender pattern is matched against the lowercased sender header, the
// subject pattern case-insensitively against the subject. First match wins.
type OverrideRule struct {
	Sender   string            `mapstructure:"sender"`
	Subject  string            `mapstructure:"subject"`
	Decision decision.Decision `mapstructure:"decision"`
	Reason   string            `mapstructure:"reason"`
}

type compiledOverride struct {
	sender   *regexp.Regexp
	subject  *regexp.Regexp
	decision decision.Decision
	reason   string
}

// OverrideEngine applies user-authored override rules on top of an
// upstream decision. The engine is immutable after construction.
type OverrideEngine struct {
	rules []compiledOverride
}

// NewOverrideEngine compiles the ordered rule list. Rules with a decision
// outside keep/archive/delete or with an invalid pattern are rejected here
// so that Apply can never fail.
func NewOverrideEngine(rules []OverrideRule) (*OverrideEngine, error) {
	compiled := make([]compiledOverride, 0, len(rules))
	for i, r := range rules {
		if !r.Decision.Valid() {
			return nil, fmt.Errorf("override rule %d: invalid decision %q", i, r.Decision)
		}
		senderRx, err := regexp.Compile(r.Sender)
		if err != nil {
			return nil, fmt.Errorf("override rule %d: invalid sender pattern %q: %w", i, r.Sender, err)
		}
		subjectRx, err := regexp.Compile("(?i)" + r.Subject)
		if err != nil {
			return nil, fmt.Errorf("override rule %d: invalid subject pattern %q: %w", i, r.Subject, err)
		}
		compiled = append(compiled, compiledOverride{
			sender:   senderRx,
			subject:  subjectRx,
			decision: r.Decision,
			reason:   r.Reason,
		})
	}
	return &OverrideEngine{rules: compiled}, nil
}

// Apply returns the overridden decision and the matching rule's reason, or
// the current decision and an empty reason when nothing matches.
//
// A category text mentioning newsletter or promotion forces delete before
// the ordered list is consulted. This short-circuit outranks every user
// rule, including rules that would keep the message.
func (e *OverrideEngine) Apply(sender, subject string, current decision.Decision, categoryText string) (decision.Decision, string) {
	c := strings.ToLower(categoryText)
	if strings.Contains(c, "newsletter") || strings.Contains(c, "promotion") {
		return decision.Delete, CategoryOverrideReason
	}

	f := strings.ToLower(sender)
	s := strings.ToLower(subject)
	for _, r := range e.rules {
		if r.sender.MatchString(f) && r.subject.MatchString(s) {
			return r.decision, r.reason
		}
	}
	return current, ""
}
