package types

// SettingsMap holds per-device NVS keys mapped to scalar values. Stored as
// jsonb through GORM's json serializer.
type SettingsMap map[string]any

// Clone returns a shallow copy so callers can mutate without aliasing the
// stored map.
func (s SettingsMap) Clone() SettingsMap {
	if s == nil {
		return nil
	}
	out := make(SettingsMap, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
