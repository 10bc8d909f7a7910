// Package decision defines the disposition vocabulary shared by the
// classification core and the rule engines.
package decision

// Decision is the disposition assigned to a message.
type Decision string

const (
	Keep    Decision = "keep"
	Archive Decision = "archive"
	Delete  Decision = "delete"
)

// Valid reports whether d is one of the three accepted decisions.
func (d Decision) Valid() bool {
	return d == Keep || d == Archive || d == Delete
}
