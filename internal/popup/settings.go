// Package popup implements the display side of promotional popups: resolving
// partial settings into complete records, deciding per popup whether and when
// to show it, and sequencing multiple popups one at a time for a page visit.
package popup

import (
	"encoding/json"
	"time"

	"github.com/innovar-labs/wavebox-widget/internal/wavebox"
)

// Position places the popup on the page.
type Position string

const (
	PositionCenter      Position = "center"
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

// Trigger is the condition that reveals an eligible popup.
type Trigger string

const (
	TriggerImmediate  Trigger = "immediate"
	TriggerDelay      Trigger = "delay"
	TriggerScroll     Trigger = "scroll"
	TriggerExitIntent Trigger = "exit-intent"
)

// Frequency is the re-display policy across visits and sessions.
type Frequency string

const (
	FrequencyOnce           Frequency = "once"
	FrequencyOncePerSession Frequency = "once-per-session"
	FrequencyAlways         Frequency = "always"
	FrequencyCustom         Frequency = "custom"
)

// TargetPages selects which paths a popup may appear on.
type TargetPages string

const (
	TargetPagesAll      TargetPages = "all"
	TargetPagesSpecific TargetPages = "specific"
)

// Audience selects which visitors a popup targets.
type Audience string

const (
	AudienceAll       Audience = "all"
	AudienceNew       Audience = "new"
	AudienceReturning Audience = "returning"
)

// Animation is the reveal animation variant.
type Animation string

const (
	AnimationFade      Animation = "fade"
	AnimationSlideUp   Animation = "slide-up"
	AnimationSlideDown Animation = "slide-down"
	AnimationZoom      Animation = "zoom"
	AnimationNone      Animation = "none"
)

// Settings is a fully resolved popup configuration: every field is defined.
// Build one with ResolveSettings, never by hand from wire data.
type Settings struct {
	Name            string
	Status          string
	Position        Position
	Trigger         Trigger
	TriggerValue    int // 0 means use the trigger's own default
	Duration        int // seconds; 0 disables auto-close
	Frequency       Frequency
	FrequencyDays   int
	StartDate       *time.Time
	EndDate         *time.Time
	ShowOnMobile    bool
	ShowOnDesktop   bool
	TargetPages     TargetPages
	SpecificPages   []string
	TargetAudience  Audience
	Animation       Animation
	ZIndex          int
	ShowOverlay     bool
	ShowCloseButton bool
}

// DefaultSettings returns the record every unset field degrades to.
func DefaultSettings() Settings {
	return Settings{
		Status:          wavebox.StatusInactive,
		Position:        PositionCenter,
		Trigger:         TriggerImmediate,
		Frequency:       FrequencyOnce,
		Duration:        0,
		ShowOnMobile:    true,
		ShowOnDesktop:   true,
		TargetPages:     TargetPagesAll,
		TargetAudience:  AudienceAll,
		Animation:       AnimationFade,
		ZIndex:          9999,
		ShowOverlay:     true,
		ShowCloseButton: true,
	}
}

// ResolveSettings merges a possibly-partial wire record with defaults.
// Absent or unrecognized values degrade to the default; it never fails.
func ResolveSettings(in wavebox.PopupSettings) Settings {
	out := DefaultSettings()

	out.Name = in.Name
	if in.Status == wavebox.StatusActive {
		out.Status = wavebox.StatusActive
	}
	if p, ok := parsePosition(in.Position); ok {
		out.Position = p
	}
	if t, ok := parseTrigger(in.Trigger); ok {
		out.Trigger = t
	}
	if in.TriggerValue != nil && *in.TriggerValue > 0 {
		out.TriggerValue = *in.TriggerValue
	}
	if in.Duration != nil && *in.Duration > 0 {
		out.Duration = *in.Duration
	}
	if f, ok := parseFrequency(in.Frequency); ok {
		out.Frequency = f
	}
	if in.FrequencyDays != nil && *in.FrequencyDays > 0 {
		out.FrequencyDays = *in.FrequencyDays
	}
	out.StartDate = in.StartDate
	out.EndDate = in.EndDate
	if in.ShowOnMobile != nil {
		out.ShowOnMobile = *in.ShowOnMobile
	}
	if in.ShowOnDesktop != nil {
		out.ShowOnDesktop = *in.ShowOnDesktop
	}
	if in.TargetPages == string(TargetPagesSpecific) {
		out.TargetPages = TargetPagesSpecific
	}
	if len(in.SpecificPages) > 0 {
		out.SpecificPages = append([]string(nil), in.SpecificPages...)
	}
	if a, ok := parseAudience(in.TargetAudience); ok {
		out.TargetAudience = a
	}
	if a, ok := parseAnimation(in.Animation); ok {
		out.Animation = a
	}
	if in.ZIndex != nil && *in.ZIndex > 0 {
		out.ZIndex = *in.ZIndex
	}
	if in.ShowOverlay != nil {
		out.ShowOverlay = *in.ShowOverlay
	}
	if in.ShowCloseButton != nil {
		out.ShowCloseButton = *in.ShowCloseButton
	}
	return out
}

// ResolveSettingsJSON resolves a raw metadata payload. Malformed input yields
// the all-default record.
func ResolveSettingsJSON(raw []byte) Settings {
	var in wavebox.PopupSettings
	if len(raw) == 0 || json.Unmarshal(raw, &in) != nil {
		return DefaultSettings()
	}
	return ResolveSettings(in)
}

func parsePosition(s string) (Position, bool) {
	switch Position(s) {
	case PositionCenter, PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight:
		return Position(s), true
	}
	return "", false
}

func parseTrigger(s string) (Trigger, bool) {
	switch Trigger(s) {
	case TriggerImmediate, TriggerDelay, TriggerScroll, TriggerExitIntent:
		return Trigger(s), true
	}
	return "", false
}

func parseFrequency(s string) (Frequency, bool) {
	switch Frequency(s) {
	case FrequencyOnce, FrequencyOncePerSession, FrequencyAlways, FrequencyCustom:
		return Frequency(s), true
	}
	return "", false
}

func parseAudience(s string) (Audience, bool) {
	switch Audience(s) {
	case AudienceAll, AudienceNew, AudienceReturning:
		return Audience(s), true
	}
	return "", false
}

func parseAnimation(s string) (Animation, bool) {
	switch Animation(s) {
	case AnimationFade, AnimationSlideUp, AnimationSlideDown, AnimationZoom, AnimationNone:
		return Animation(s), true
	}
	return "", false
}
