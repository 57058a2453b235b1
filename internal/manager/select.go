package manager

import "validd/pkg/types"

// SelectCandidate filters the descriptor list to those whose memory
// requirement fits within available memory minus the safety margin AND whose
// artifact passes the integrity checker, then picks one:
//
//  1. the field type's configured affinity descriptor, when present in the
//     filtered set, else the first filtered descriptor declaring the field
//     type in its own affinity tags;
//  2. the first fallback-order member present in the filtered set;
//  3. the last filtered entry, i.e. the most capable model that still fits.
//
// Ties are broken by descriptor declaration order. Returns a
// resource-exhausted error when nothing fits.
func (m *Manager) SelectCandidate(fieldType string) (types.ModelDescriptor, error) {
	availMB := m.availableMB()

	var fits []types.ModelDescriptor
	for _, d := range m.descriptors {
		if d.MemoryRequirementMB > availMB {
			m.log.Debug().Str("model", d.ID).Int("required_mb", d.MemoryRequirementMB).
				Int("avail_mb", availMB).Msg("candidate rejected: memory")
			continue
		}
		if err := m.checker.Check(d.Path); err != nil {
			m.log.Debug().Str("model", d.ID).Err(err).Msg("candidate rejected: artifact")
			continue
		}
		fits = append(fits, d)
	}
	if len(fits) == 0 {
		return types.ModelDescriptor{}, resourceExhaustedError{availMB: availMB}
	}

	if fieldType != "" {
		if preferred, ok := m.affinity[fieldType]; ok {
			for _, d := range fits {
				if d.ID == preferred {
					m.log.Debug().Str("model", d.ID).Str("field_type", fieldType).
						Msg("candidate selected by affinity")
					return d, nil
				}
			}
		}
		// Descriptors may declare their own affinity tags.
		for _, d := range fits {
			for _, tag := range d.Affinity {
				if tag == fieldType {
					m.log.Debug().Str("model", d.ID).Str("field_type", fieldType).
						Msg("candidate selected by declared affinity")
					return d, nil
				}
			}
		}
	}

	for _, id := range m.fallback {
		for _, d := range fits {
			if d.ID == id {
				m.log.Debug().Str("model", d.ID).Msg("candidate selected by fallback order")
				return d, nil
			}
		}
	}

	// Most capable that still fits.
	best := fits[len(fits)-1]
	m.log.Debug().Str("model", best.ID).Msg("candidate selected as largest fit")
	return best, nil
}
