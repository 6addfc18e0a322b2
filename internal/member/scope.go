package member

import "strings"

// Scope selects visibility and kind of the members a lookup may return.
type Scope uint8

const (
	Public Scope = 1 << iota
	NonPublic
	Instance
	Static
)

const (
	anyVisibility = Public | NonPublic
	anyKind       = Instance | Static
)

// ForInstance forces the instance bit on and the static bit off. An empty
// visibility widens to both.
func (s Scope) ForInstance() Scope {
	return (s &^ Static | Instance).withVisibility()
}

// ForStatic forces the static bit on and the instance bit off.
func (s Scope) ForStatic() Scope {
	return (s &^ Instance | Static).withVisibility()
}

func (s Scope) withVisibility() Scope {
	if s&anyVisibility == 0 {
		s |= anyVisibility
	}
	return s
}

func (s Scope) Has(bits Scope) bool { return s&bits == bits }

// Allows reports whether a member with the given export status is visible.
func (s Scope) Allows(exported bool) bool {
	if exported {
		return s&Public != 0
	}
	return s&NonPublic != 0
}

func (s Scope) String() string {
	var parts []string
	for _, b := range []struct {
		bit  Scope
		name string
	}{{Public, "public"}, {NonPublic, "nonpublic"}, {Instance, "instance"}, {Static, "static"}} {
		if s&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseScope reads "public|instance" style strings as written in manifests.
func ParseScope(text string) (Scope, bool) {
	var s Scope
	if strings.TrimSpace(text) == "" {
		return 0, true
	}
	for _, part := range strings.Split(text, "|") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "public":
			s |= Public
		case "nonpublic", "non-public", "private":
			s |= NonPublic
		case "instance":
			s |= Instance
		case "static":
			s |= Static
		default:
			return 0, false
		}
	}
	return s, true
}
