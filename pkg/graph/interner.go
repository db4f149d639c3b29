package graph

// TypeTable is a bidirectional string<->code table. Codes start at 0 and are
// assigned in first-seen order.
type TypeTable struct {
	codes map[string]int
	names []string
}

func newTypeTable() *TypeTable {
	return &TypeTable{codes: make(map[string]int)}
}

// Intern returns the code for name, assigning the next unused code on first
// sight.
func (t *TypeTable) Intern(name string) int {
	if code, ok := t.codes[name]; ok {
		return code
	}
	code := len(t.names)
	t.codes[name] = code
	t.names = append(t.names, name)
	return code
}

func (t *TypeTable) Code(name string) (int, bool) {
	code, ok := t.codes[name]
	return code, ok
}

func (t *TypeTable) Name(code int) (string, bool) {
	if code < 0 || code >= len(t.names) {
		return "", false
	}
	return t.names[code], true
}

// Names returns a copy of the table indexed by code.
func (t *TypeTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func (t *TypeTable) Len() int {
	return len(t.names)
}

// TypeInterner keeps independent tables for entity and relationship types.
type TypeInterner struct {
	Entities      *TypeTable
	Relationships *TypeTable
}

func NewTypeInterner() *TypeInterner {
	return &TypeInterner{
		Entities:      newTypeTable(),
		Relationships: newTypeTable(),
	}
}

func (i *TypeInterner) InternEntityType(name string) int {
	return i.Entities.Intern(name)
}

func (i *TypeInterner) InternRelationshipType(name string) int {
	return i.Relationships.Intern(name)
}
