package txstate

// AuxIndexChange is a pending change to an auxiliary (explicitly named)
// index that lives outside the schema.
type AuxIndexChange struct {
	Index  string
	Key    string
	Value  string
	NodeID uint64
	Remove bool
}

// AuxIndexState collects auxiliary index changes. It is persisted alongside
// TxState but tracked separately because the index provider owns its contents.
type AuxIndexState struct {
	changes []AuxIndexChange
}

func NewAuxIndexState() *AuxIndexState {
	return &AuxIndexState{}
}

func (a *AuxIndexState) Add(index, key, value string, node uint64) {
	a.changes = append(a.changes, AuxIndexChange{Index: index, Key: key, Value: value, NodeID: node})
}

func (a *AuxIndexState) Remove(index, key, value string, node uint64) {
	a.changes = append(a.changes, AuxIndexChange{Index: index, Key: key, Value: value, NodeID: node, Remove: true})
}

func (a *AuxIndexState) HasChanges() bool {
	return len(a.changes) > 0
}

// Changes returns the changes in the order they were made.
func (a *AuxIndexState) Changes() []AuxIndexChange {
	out := make([]AuxIndexChange, len(a.changes))
	copy(out, a.changes)
	return out
}
