// Package salvage recovers structured classification fields from oracle
// responses that are supposed to be strict JSON but often are not.
package salvage

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Status describes how much of the response could be recovered.
type Status int

const (
	// FullyParsed means the whole response was a valid JSON object
	FullyParsed Status = iota
	// PartiallyRecovered means fields were extracted from malformed text
	PartiallyRecovered
	// NothingRecovered means no field could be extracted by any method
	NothingRecovered
)

// Fields is the subset of the response schema that could be recovered.
// Absent fields stay at their zero value; Confidence is nil when absent
// or unparseable.
type Fields struct {
	Decision   string
	Confidence *float64
	Reason     string
	Categories []string
	Summary    string
}

// Outcome is the result of parsing one oracle response.
type Outcome struct {
	Status Status
	Fields Fields
}

var (
	decisionRx   = regexp.MustCompile(`(?is)"decision"\s*:\s*"([^"]+)"`)
	confidenceRx = regexp.MustCompile(`(?is)"confidence"\s*:\s*([0-9.]+)`)
	reasonRx     = regexp.MustCompile(`(?is)"reason"\s*:\s*"([^"]+)"`)
	summaryRx    = regexp.MustCompile(`(?is)"summary"\s*:\s*"([^"]+)"`)
	categoryRx   = regexp.MustCompile(`(?is)"(?:category|labels)"\s*:\s*\[([^\]]*)\]`)
	quotedRx     = regexp.MustCompile(`"([^"]+)"`)
)

// Parse extracts whatever classification fields the response text contains.
// It never fails: the worst case is an outcome with NothingRecovered.
// Decision values are lowercased but not validated here; out-of-enum
// filtering is the resolver's job.
func Parse(raw string) Outcome {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Outcome{Status: NothingRecovered}
	}

	// Primary path: the whole response is one JSON object
	if strings.HasPrefix(trimmed, "{") {
		if fields, ok := parseStrict(trimmed); ok {
			return Outcome{Status: FullyParsed, Fields: fields}
		}
	}

	// Take everything from the first brace and close any unbalanced braces
	if i := strings.IndexByte(raw, '{'); i >= 0 {
		chunk := raw[i:]
		if open, closed := strings.Count(chunk, "{"), strings.Count(chunk, "}"); closed < open {
			chunk += strings.Repeat("}", open-closed)
		}
		if fields, ok := parseStrict(chunk); ok {
			return Outcome{Status: PartiallyRecovered, Fields: fields}
		}
	}

	// Last resort: tolerant per-field extraction
	fields, any := parseTolerant(raw)
	if !any {
		return Outcome{Status: NothingRecovered}
	}
	return Outcome{Status: PartiallyRecovered, Fields: fields}
}

type envelope struct {
	Decision   string          `json:"decision"`
	Confidence *float64        `json:"confidence"`
	Reason     string          `json:"reason"`
	Category   json.RawMessage `json:"category"`
	Labels     json.RawMessage `json:"labels"`
	Summary    string          `json:"summary"`
}

func parseStrict(text string) (Fields, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return Fields{}, false
	}
	fields := Fields{
		Decision:   strings.ToLower(strings.TrimSpace(env.Decision)),
		Confidence: env.Confidence,
		Reason:     env.Reason,
		Summary:    env.Summary,
	}
	fields.Categories = decodeCategories(env.Category)
	if len(fields.Categories) == 0 {
		fields.Categories = decodeCategories(env.Labels)
	}
	return fields, true
}

// decodeCategories accepts either a JSON array of strings or a single
// string, which some models emit instead of a list.
func decodeCategories(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

func parseTolerant(raw string) (Fields, bool) {
	var fields Fields
	any := false

	if m := decisionRx.FindStringSubmatch(raw); m != nil {
		fields.Decision = strings.ToLower(m[1])
		any = true
	}
	if m := confidenceRx.FindStringSubmatch(raw); m != nil {
		// unparseable numbers are dropped silently
		if conf, err := strconv.ParseFloat(m[1], 64); err == nil {
			fields.Confidence = &conf
			any = true
		}
	}
	if m := reasonRx.FindStringSubmatch(raw); m != nil {
		fields.Reason = m[1]
		any = true
	}
	if m := summaryRx.FindStringSubmatch(raw); m != nil {
		fields.Summary = m[1]
		any = true
	}
	if m := categoryRx.FindStringSubmatch(raw); m != nil {
		for _, q := range quotedRx.FindAllStringSubmatch(m[1], -1) {
			fields.Categories = append(fields.Categories, q[1])
		}
		if len(fields.Categories) > 0 {
			any = true
		}
	}
	return fields, any
}
