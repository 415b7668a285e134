package wavebox

import "time"

// PopupSettings is the wire form of a popup's display configuration. The
// backend may send a partial record; pointer fields distinguish "unset" from
// a deliberate zero so the resolver can fill defaults. Use
// popup.ResolveSettings before acting on one of these.
type PopupSettings struct {
	Name            string     `json:"name,omitempty"`
	Status          string     `json:"status,omitempty"`
	Position        string     `json:"position,omitempty"`
	Trigger         string     `json:"trigger,omitempty"`
	TriggerValue    *int       `json:"triggerValue,omitempty"`
	Duration        *int       `json:"duration,omitempty"`
	Frequency       string     `json:"frequency,omitempty"`
	FrequencyDays   *int       `json:"frequencyDays,omitempty"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	ShowOnMobile    *bool      `json:"showOnMobile,omitempty"`
	ShowOnDesktop   *bool      `json:"showOnDesktop,omitempty"`
	TargetPages     string     `json:"targetPages,omitempty"`
	SpecificPages   []string   `json:"specificPages,omitempty"`
	TargetAudience  string     `json:"targetAudience,omitempty"`
	Animation       string     `json:"animation,omitempty"`
	ZIndex          *int       `json:"zIndex,omitempty"`
	ShowOverlay     *bool      `json:"showOverlay,omitempty"`
	ShowCloseButton *bool      `json:"showCloseButton,omitempty"`
}
