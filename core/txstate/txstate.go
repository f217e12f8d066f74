// Package txstate holds the uncommitted changes a transaction has made. It is
// owned by a single goroutine and is not safe for concurrent use.
package txstate

import (
	"slices"
	"sort"
)

// Relationship is a relationship created inside the transaction.
type Relationship struct {
	ID        uint64
	Type      string
	StartNode uint64
	EndNode   uint64
}

// PropertyChange is a pending property write. Removed marks a deletion.
type PropertyChange struct {
	NodeID  uint64
	Key     string
	Value   any
	Removed bool
}

// LabelChange is a label added to a node.
type LabelChange struct {
	NodeID uint64
	Label  string
}

// SchemaIndex is a schema index requested by the transaction.
type SchemaIndex struct {
	Label    string
	Property string
}

// TxState records graph changes made through statements.
type TxState struct {
	createdNodes map[uint64]struct{}
	deletedNodes map[uint64]struct{}
	createdRels  map[uint64]Relationship
	deletedRels  map[uint64]struct{}
	properties   map[uint64]map[string]PropertyChange
	labels       map[uint64]map[string]struct{}
	indexes      []SchemaIndex
}

func New() *TxState {
	return &TxState{
		createdNodes: make(map[uint64]struct{}),
		deletedNodes: make(map[uint64]struct{}),
		createdRels:  make(map[uint64]Relationship),
		deletedRels:  make(map[uint64]struct{}),
		properties:   make(map[uint64]map[string]PropertyChange),
		labels:       make(map[uint64]map[string]struct{}),
	}
}

func (s *TxState) NodeDoCreate(id uint64) {
	delete(s.deletedNodes, id)
	s.createdNodes[id] = struct{}{}
}

// NodeDoDelete deletes a node. Deleting a node created in the same transaction
// simply forgets it along with its pending properties and labels.
func (s *TxState) NodeDoDelete(id uint64) {
	delete(s.properties, id)
	delete(s.labels, id)
	if _, ok := s.createdNodes[id]; ok {
		delete(s.createdNodes, id)
		return
	}
	s.deletedNodes[id] = struct{}{}
}

func (s *TxState) NodeIsCreatedInThisTx(id uint64) bool {
	_, ok := s.createdNodes[id]
	return ok
}

func (s *TxState) NodeIsDeletedInThisTx(id uint64) bool {
	_, ok := s.deletedNodes[id]
	return ok
}

func (s *TxState) RelationshipDoCreate(id uint64, relType string, start, end uint64) {
	delete(s.deletedRels, id)
	s.createdRels[id] = Relationship{ID: id, Type: relType, StartNode: start, EndNode: end}
}

func (s *TxState) RelationshipDoDelete(id uint64) {
	if _, ok := s.createdRels[id]; ok {
		delete(s.createdRels, id)
		return
	}
	s.deletedRels[id] = struct{}{}
}

func (s *TxState) NodeDoSetProperty(node uint64, key string, value any) {
	s.propertyMap(node)[key] = PropertyChange{NodeID: node, Key: key, Value: value}
}

func (s *TxState) NodeDoRemoveProperty(node uint64, key string) {
	s.propertyMap(node)[key] = PropertyChange{NodeID: node, Key: key, Removed: true}
}

func (s *TxState) propertyMap(node uint64) map[string]PropertyChange {
	props, ok := s.properties[node]
	if !ok {
		props = make(map[string]PropertyChange)
		s.properties[node] = props
	}
	return props
}

func (s *TxState) NodeDoAddLabel(node uint64, label string) {
	labels, ok := s.labels[node]
	if !ok {
		labels = make(map[string]struct{})
		s.labels[node] = labels
	}
	labels[label] = struct{}{}
}

func (s *TxState) IndexDoAdd(label, property string) {
	idx := SchemaIndex{Label: label, Property: property}
	if slices.Contains(s.indexes, idx) {
		return
	}
	s.indexes = append(s.indexes, idx)
}

// HasChanges reports whether anything would need to be persisted.
func (s *TxState) HasChanges() bool {
	return len(s.createdNodes) > 0 ||
		len(s.deletedNodes) > 0 ||
		len(s.createdRels) > 0 ||
		len(s.deletedRels) > 0 ||
		len(s.properties) > 0 ||
		len(s.labels) > 0 ||
		len(s.indexes) > 0
}

// The accessors below return changes in ascending id order so that generated
// commands are deterministic.

func (s *TxState) CreatedNodes() []uint64 { return sortedKeys(s.createdNodes) }
func (s *TxState) DeletedNodes() []uint64 { return sortedKeys(s.deletedNodes) }
func (s *TxState) DeletedRelationships() []uint64 {
	return sortedKeys(s.deletedRels)
}

func (s *TxState) CreatedRelationships() []Relationship {
	rels := make([]Relationship, 0, len(s.createdRels))
	for _, r := range s.createdRels {
		rels = append(rels, r)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels
}

func (s *TxState) PropertyChanges() []PropertyChange {
	var changes []PropertyChange
	for _, node := range sortedKeys(s.properties) {
		props := s.properties[node]
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			changes = append(changes, props[k])
		}
	}
	return changes
}

func (s *TxState) LabelChanges() []LabelChange {
	var changes []LabelChange
	for _, node := range sortedKeys(s.labels) {
		labels := make([]string, 0, len(s.labels[node]))
		for l := range s.labels[node] {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			changes = append(changes, LabelChange{NodeID: node, Label: l})
		}
	}
	return changes
}

func (s *TxState) SchemaIndexes() []SchemaIndex {
	return slices.Clone(s.indexes)
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
