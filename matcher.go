package gatewise

import "strings"

// matchPermission checks whether a held permission name satisfies a
// required one. Permission names are "resource:action". A held name may
// end in '*' to cover every action on the resource: "chatflow:*" satisfies
// "chatflow:read". A bare "*" satisfies everything.
func matchPermission(held, required string) bool {
	if held == required || held == "*" {
		return true
	}
	if strings.HasSuffix(held, "*") {
		return strings.HasPrefix(required, strings.TrimSuffix(held, "*"))
	}
	return false
}
