// Package condition parses and evaluates the WebDAV If request header.
//
// An If header is a list of parenthesized groups. The groups are OR-ed, the
// terms inside a group are AND-ed, and each term is either a state token in
// angle brackets or an entity tag in square brackets, optionally negated
// with "Not":
//
//	<http://host/res> (<opaquelocktoken:1234> ["abc"]) (Not <DAV:no-lock>)
//
// An optional resource tag before the first group is accepted and ignored;
// evaluation always runs against the request's own target.
package condition

import "errors"

// ErrMalformedCondition is returned by Parse for an unparseable header.
var ErrMalformedCondition = errors.New("malformed If header")

// TermKind tells a state token from an entity tag.
type TermKind uint8

const (
	// TermToken is a state token, written <token>.
	TermToken TermKind = iota

	// TermETag is an entity tag, written [etag].
	TermETag
)

func (k TermKind) String() string {
	if k == TermETag {
		return "etag"
	}
	return "token"
}

// Term is one operand of a group.
type Term struct {
	Negated bool
	Kind    TermKind
	Value   string
}

// Group is a non-empty AND of terms.
type Group struct {
	Terms []Term
}

// Condition is an OR of groups.
type Condition struct {
	Groups []Group
}
