package meta

// Flag is a single protocol flag with its optional token, e.g. Flag{Type:
// FlagTTL, Token: "60"} renders as "T60".
type Flag struct {
	Type  FlagType
	Token string
}

// Flags is an ordered collection of Flag, preserving wire order: unlike the
// teacher's root-level generation, this package never re-sorts flags before
// serialization, since the protocol imposes no ordering requirement and
// preserving insertion order keeps wire traces predictable.
type Flags []Flag

// Has reports whether a flag of the given type is present.
func (f Flags) Has(t FlagType) bool {
	for _, flag := range f {
		if flag.Type == t {
			return true
		}
	}
	return false
}

// Get returns the token of the first flag of the given type.
func (f Flags) Get(t FlagType) (token string, ok bool) {
	for _, flag := range f {
		if flag.Type == t {
			return flag.Token, true
		}
	}
	return "", false
}
