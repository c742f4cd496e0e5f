// Package tenant validates the tenant identifiers carried on incoming
// requests.
package tenant

import "regexp"

// HeaderName is the request header that carries the tenant identifier.
const HeaderName = "X-Tenant-ID"

// idPattern matches RFC 4122 GUIDs in their canonical hyphenated form:
// version 1 through 5, RFC variant, hex digits in either case. uuid.Parse
// also accepts urn: prefixes, braced and unhyphenated forms, none of which
// are valid in the header.
var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// ValidID reports whether id is a well-formed RFC 4122 GUID.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
