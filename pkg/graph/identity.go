package graph

import "github.com/OFFIS-RIT/mt2n/pkg/common"

// IdentityResolver decides whether an incoming entity denotes a node that is
// already stored. Only entity types with a configured identifier property
// take part; every occurrence of any other type is a distinct node.
type IdentityResolver struct {
	types       *TypeTable
	identifiers map[string]string
	// entity type code -> identifier value -> canonical id
	index map[int]map[string]int
}

func newIdentityResolver(types *TypeTable, identifiers map[string]string) *IdentityResolver {
	ids := make(map[string]string, len(identifiers))
	for k, v := range identifiers {
		ids[k] = v
	}
	return &IdentityResolver{
		types:       types,
		identifiers: ids,
		index:       make(map[int]map[string]int),
	}
}

// IdentifierProperty returns the identifier property configured for the
// entity type code.
func (r *IdentityResolver) IdentifierProperty(entityType int) (string, bool) {
	if entityType == common.UntypedEntity {
		return "", false
	}
	name, ok := r.types.Name(entityType)
	if !ok {
		return "", false
	}
	prop, ok := r.identifiers[name]
	return prop, ok
}

func (r *IdentityResolver) identifierValue(entityType int, props map[string]string) (string, bool) {
	prop, ok := r.IdentifierProperty(entityType)
	if !ok {
		return "", false
	}
	value, ok := props[prop]
	return value, ok
}

// Lookup returns the canonical id of the stored node sharing the incoming
// entity's identifier value.
func (r *IdentityResolver) Lookup(entityType int, props map[string]string) (int, bool) {
	value, ok := r.identifierValue(entityType, props)
	if !ok {
		return 0, false
	}
	id, ok := r.index[entityType][value]
	return id, ok
}

// Register records a newly created node under its identifier value.
func (r *IdentityResolver) Register(entityType int, props map[string]string, id int) {
	value, ok := r.identifierValue(entityType, props)
	if !ok {
		return
	}
	byValue, ok := r.index[entityType]
	if !ok {
		byValue = make(map[string]int)
		r.index[entityType] = byValue
	}
	byValue[value] = id
}

// Alias makes value resolve to the node id as well. An existing entry for
// value is kept.
func (r *IdentityResolver) Alias(entityType int, value string, id int) {
	byValue, ok := r.index[entityType]
	if !ok {
		byValue = make(map[string]int)
		r.index[entityType] = byValue
	}
	if _, taken := byValue[value]; !taken {
		byValue[value] = id
	}
}
