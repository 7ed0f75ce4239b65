package meta

// Flags is an ordered list of response flags, in wire order.
type Flags []Flag

// Has reports whether the list contains a flag of the given type.
func (f Flags) Has(flagType FlagType) bool {
	_, ok := f.Get(flagType)
	return ok
}

// Get returns the token of the first flag of the given type.
// ok is false if no such flag is present; token is nil if the flag is
// present but carries no token.
func (f Flags) Get(flagType FlagType) (token []byte, ok bool) {
	for _, flag := range f {
		if flag.Type == flagType {
			if flag.Token == "" {
				return nil, true
			}
			return []byte(flag.Token), true
		}
	}
	return nil, false
}
