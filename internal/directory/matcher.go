package directory

import "strings"

// Resolve returns the company key for a message. Subject and snippet are
// lowercased and every directory key contained in either one is a candidate;
// the last candidate in declaration order wins. No candidate yields Other.
//
// Containment is plain substring matching, so a short key can match inside an
// unrelated word ("air" in "chair"). Keys should be chosen with that in mind.
func (d *Directory) Resolve(subject, snippet string) string {
	subject = strings.ToLower(subject)
	snippet = strings.ToLower(snippet)
	company := Other
	for _, e := range d.entries {
		if strings.Contains(subject, e.Key) || strings.Contains(snippet, e.Key) {
			company = e.Key
		}
	}
	return company
}

// MatchOverride returns the first override whose marker appears in subject.
// Markers are ticket references and match case-sensitively.
func (d *Directory) MatchOverride(subject string) (Override, bool) {
	for _, o := range d.overrides {
		if strings.Contains(subject, o.Marker) {
			return o, true
		}
	}
	return Override{}, false
}

// Recipient returns the contact and legal basis for company, falling back to
// fallback and GenericLaw when the key is unknown.
func (d *Directory) Recipient(company, fallback string) (contact, law string) {
	if e, ok := d.Lookup(company); ok {
		return e.Contact, e.Law
	}
	return fallback, GenericLaw
}
