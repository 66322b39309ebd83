package domain

// Preferences controls which notifications a subject receives and how the
// UI surfaces them. One row per (subject, role), created lazily: reads on a
// missing row return DefaultPreferences without writing anything.
type Preferences struct {
	SubjectID         string      `json:"subject_id"`
	SubjectRole       Role        `json:"subject_role"`
	SoundEnabled      bool        `json:"sound_enabled"`
	SoundVolume       int         `json:"sound_volume"`
	EnabledEventTypes []EventType `json:"enabled_event_types"`
	UpdatedAt         int64       `json:"updated_at"`
}

// DefaultPreferences returns the implicit row for a subject that has never
// saved preferences: sound on at volume 80, every event type enabled.
func DefaultPreferences(subjectID string, role Role) *Preferences {
	return &Preferences{
		SubjectID:         subjectID,
		SubjectRole:       role,
		SoundEnabled:      true,
		SoundVolume:       80,
		EnabledEventTypes: AllEventTypes(),
	}
}

// Allows reports whether the subject has the given event type enabled.
func (p *Preferences) Allows(t EventType) bool {
	for _, enabled := range p.EnabledEventTypes {
		if enabled == t {
			return true
		}
	}
	return false
}

// UpdatePreferencesRequest carries a partial preferences update.
// Nil fields are left unchanged; a non-nil empty EnabledEventTypes slice
// disables every notification type.
type UpdatePreferencesRequest struct {
	SoundEnabled      *bool        `json:"sound_enabled"`
	SoundVolume       *int         `json:"sound_volume"`
	EnabledEventTypes *[]EventType `json:"enabled_event_types"`
}

func (r *UpdatePreferencesRequest) Validate() error {
	if r.SoundVolume != nil && (*r.SoundVolume < 0 || *r.SoundVolume > 100) {
		return ErrInvalidVolume
	}
	if r.EnabledEventTypes != nil {
		for _, t := range *r.EnabledEventTypes {
			if !t.IsValid() {
				return ErrInvalidEventType
			}
		}
	}
	return nil
}
