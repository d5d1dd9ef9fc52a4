package collection

import (
	"strconv"
	"strings"

	"github.com/rendis/mapharvest/internal/model"
)

// Fingerprint identifies a real-world place. Two businesses with equal
// fingerprints are treated as the same place.
type Fingerprint string

// missingPart stands for an absent field that a rule still includes. Present
// values are always quoted, so it can never collide with one.
const missingPart = "<nil>"

// KeyRule contributes one element to a fingerprint. Always rules contribute
// even when the field is absent; the others only when it is present.
type KeyRule struct {
	Field  model.Field
	Prefix string
	Always bool
}

// KeyPolicy is the ordered list of rules that builds a fingerprint.
type KeyPolicy []KeyRule

// DefaultPolicy keys a place by name plus its strong external identifiers.
var DefaultPolicy = KeyPolicy{
	{Field: model.FieldName, Always: true},
	{Field: model.FieldDomain, Prefix: "domain:"},
	{Field: model.FieldWebsite, Prefix: "website:"},
	{Field: model.FieldPhone, Prefix: "phone:"},
	{Field: model.FieldPlusCode, Prefix: "pluscode:"},
}

// StrictPolicy also keys on the address, so same-named places without any
// identifier are kept apart when their addresses differ.
var StrictPolicy = append(append(KeyPolicy{}, DefaultPolicy...), KeyRule{Field: model.FieldAddress, Prefix: "address:"})

// Fingerprint derives the key of b under the policy.
func (p KeyPolicy) Fingerprint(b model.Business) Fingerprint {
	parts := make([]string, 0, len(p))
	for _, r := range p {
		v, ok := b.Value(r.Field)
		switch {
		case ok:
			parts = append(parts, strconv.Quote(r.Prefix+v))
		case r.Always:
			parts = append(parts, missingPart)
		}
	}
	return Fingerprint("(" + strings.Join(parts, ",") + ")")
}
