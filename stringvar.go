package formula

// StringVar is a mutable text cell. Bind it with SymbolTable.AddStringVar
// and change it with Set; compiled expressions see the new text on their next
// evaluation.
type StringVar struct {
	s string
}

// NewStringVar returns a cell holding s.
func NewStringVar(s string) *StringVar {
	return &StringVar{s: s}
}

// Set replaces the text.
func (v *StringVar) Set(s string) {
	v.s = s
}

// Get returns the current text.
func (v *StringVar) Get() string {
	return v.s
}

// Len is the length of the text in bytes.
func (v *StringVar) Len() int {
	return len(v.s)
}

func (v *StringVar) String() string {
	return v.s
}
