// Package metadata provides the runtime slot assignment run at finalization
package metadata

// assignIndexes numbers the members declared on et. Slots continue after the counts of
// the base type, so a base type's members keep the same slots in every derived type.
// Base types must be indexed first.
func (et *EntityType) assignIndexes() {
	var c PropertyCounts
	if et.baseType != nil && et.baseType.counts != nil {
		c = *et.baseType.counts
	}

	strategy := et.ChangeTrackingStrategy()
	for _, p := range et.DeclaredProperties() {
		slots := PropertyIndexes{
			Index:               c.MemberCount,
			ShadowIndex:         -1,
			OriginalValueIndex:  -1,
			RelationshipIndex:   -1,
			StoreGeneratedIndex: -1,
		}
		c.MemberCount++
		c.PropertyCount++

		if p.IsShadow() {
			slots.ShadowIndex = c.ShadowCount
			c.ShadowCount++
		}
		if requiresOriginalValue(p, strategy) {
			slots.OriginalValueIndex = c.OriginalValueCount
			c.OriginalValueCount++
		}
		if p.IsForeignKey() {
			slots.RelationshipIndex = c.RelationshipCount
			c.RelationshipCount++
		}
		if p.ValueGenerated() != ValueGeneratedNever {
			slots.StoreGeneratedIndex = c.StoreGeneratedCount
			c.StoreGeneratedCount++
		}
		p.slots = &slots
	}

	navigation := func(m *memberBase, collection bool) {
		slots := PropertyIndexes{
			Index:               c.MemberCount,
			ShadowIndex:         -1,
			OriginalValueIndex:  -1,
			RelationshipIndex:   -1,
			StoreGeneratedIndex: -1,
		}
		c.MemberCount++
		c.NavigationCount++
		if !collection || strategy == ChangeTrackingSnapshot {
			slots.RelationshipIndex = c.RelationshipCount
			c.RelationshipCount++
		}
		m.slots = &slots
	}
	for _, n := range et.DeclaredNavigations() {
		navigation(&n.memberBase, n.IsCollection())
	}
	for _, s := range et.DeclaredSkipNavigations() {
		navigation(&s.memberBase, s.IsCollection())
	}

	et.counts = &c
}

// requiresOriginalValue reports whether the property keeps an original value. Under
// full notification tracking only keys and concurrency tokens do.
func requiresOriginalValue(p *Property, strategy ChangeTrackingStrategy) bool {
	if !strategy.IsFullNotification() {
		return true
	}
	return p.IsKey() || p.IsConcurrencyToken()
}
