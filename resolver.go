package svcinject

import "reflect"

// resolver is the materialized form of a Registration.
type resolver struct {
	produce func() (any, error)
}

func singletonResolver(instance any) *resolver {
	return &resolver{produce: func() (any, error) { return instance, nil }}
}

// resolverSet holds the default and labeled resolvers of one contract type.
// The first resolver added becomes the default, even when it is labeled.
type resolverSet struct {
	def     *resolver
	labeled map[Label]*resolver
}

func (s *resolverSet) add(label Label, res *resolver) {
	if s.def == nil || label == NoLabel {
		s.def = res
	}
	if label != NoLabel {
		if s.labeled == nil {
			s.labeled = make(map[Label]*resolver)
		}
		s.labeled[label] = res
	}
}

func (s *resolverSet) get(label Label) (*resolver, bool) {
	if label == NoLabel {
		return s.def, s.def != nil
	}
	res, ok := s.labeled[label]
	return res, ok
}

// remove drops res wherever it is indexed.
func (s *resolverSet) remove(label Label, res *resolver) {
	if s.def == res {
		s.def = nil
	}
	if label != NoLabel && s.labeled[label] == res {
		delete(s.labeled, label)
	}
}

// resolverTable maps contract types to their resolvers.
type resolverTable map[reflect.Type]*resolverSet

func (t resolverTable) lookup(contract reflect.Type, label Label) (*resolver, bool) {
	set, ok := t[contract]
	if !ok {
		return nil, false
	}
	return set.get(label)
}

func (t resolverTable) add(contract reflect.Type, label Label, res *resolver) {
	set, ok := t[contract]
	if !ok {
		set = &resolverSet{}
		t[contract] = set
	}
	set.add(label, res)
}

func (t resolverTable) remove(contract reflect.Type, label Label, res *resolver) {
	if set, ok := t[contract]; ok {
		set.remove(label, res)
	}
}

// scopeTable is a resolver table plus the carrier managed components of that table live on.
type scopeTable struct {
	resolvers resolverTable
	carrier   Carrier
}

func newScopeTable() *scopeTable {
	return &scopeTable{resolvers: make(resolverTable)}
}
