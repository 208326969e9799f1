package ecs

// Join2 visits the entities that own both components, in ascending index
// order. Both stores are sorted, so this is a single merge pass.
func Join2(sa, sb *Store, fn func(EntityID, []byte, []byte)) {
	ea, eb := sa.entities, sb.entities
	i, j := 0, 0
	for i < len(ea) && j < len(eb) {
		ia, ib := ea[i].Index(), eb[j].Index()
		switch {
		case ia < ib:
			i++
		case ia > ib:
			j++
		default:
			if ea[i] == eb[j] {
				fn(ea[i], sa.at(i), sb.at(j))
			}
			i++
			j++
		}
	}
}

// Join3 visits the entities that own all three components.
func Join3(sa, sb, sc *Store, fn func(EntityID, []byte, []byte, []byte)) {
	k := 0
	ec := sc.entities
	Join2(sa, sb, func(id EntityID, a, b []byte) {
		for k < len(ec) && ec[k].Index() < id.Index() {
			k++
		}
		if k < len(ec) && ec[k] == id {
			fn(id, a, b, sc.at(k))
		}
	})
}

func (s *Store) at(i int) []byte {
	es := s.desc.ElemSize
	return s.data[i*es : (i+1)*es : (i+1)*es]
}
