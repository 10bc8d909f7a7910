package core

import (
	"fmt"
)

// decidePromptFormat instructs the oracle to return one strict JSON object.
// The salvage parser copes with responses that ignore the instruction.
const decidePromptFormat = `You are an email triage assistant that classifies messages and decides what to do with them.

Possible decisions:
- "keep"    : leave in the inbox (useful / sensitive / near-term action)
- "archive" : remove from the inbox but retain (All Mail)
- "delete"  : send to trash (no value or redundant content)

Policy (cautious but effective):
- Keep security, banking, invoices, HR, health and recent important confirmations.
- Archive recent newsletters/promotions and non-critical but possibly useful items.
- Delete old promotions, newsletters, ads and redundant technical noise.

Decide only from the sender, subject and body below.
Be concise, but return a STRICT JSON object with exactly these keys:

{"category": ["..."], "decision": "keep|archive|delete", "confidence": 0.0-1.0, "reason": "...", "summary": "..."}

From: %s
Subject: %s
---
%s
---
`

// RenderPrompt builds the classification prompt for one message.
func RenderPrompt(from, subject, bodyExcerpt string) string {
	return fmt.Sprintf(decidePromptFormat, from, subject, bodyExcerpt)
}

// WarmUpPrompt is a minimal prompt used to load the model before a batch.
const WarmUpPrompt = `Reply with: OK`
