// Package proctor watches students during a sitting: it classifies input
// notifications into suspicious actions and keeps a per-student activity log.
package proctor

import "time"

// KeyCode names a key independently of the input device that produced it.
type KeyCode string

const (
	KeyC           KeyCode = "C"
	KeyV           KeyCode = "V"
	KeyTab         KeyCode = "Tab"
	KeyMeta        KeyCode = "Meta"
	KeyF4          KeyCode = "F4"
	KeyPrintScreen KeyCode = "PrintScreen"
)

// NotificationKind distinguishes key presses from window focus loss.
type NotificationKind string

const (
	NotificationKey       NotificationKind = "key"
	NotificationFocusLost NotificationKind = "focus_lost"
)

// Modifiers are the modifier keys held during a key press.
type Modifiers struct {
	Control bool `json:"control"`
	Alt     bool `json:"alt"`
	Shift   bool `json:"shift"`
	Meta    bool `json:"meta"`
}

// Notification is a raw input event reported by a student's environment.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Code      KeyCode          `json:"code"`
	Modifiers Modifiers        `json:"modifiers"`
	Timestamp time.Time        `json:"timestamp"`
}

// KeyPress builds a key notification.
func KeyPress(code KeyCode, mods Modifiers, at time.Time) Notification {
	return Notification{Kind: NotificationKey, Code: code, Modifiers: mods, Timestamp: at}
}

// FocusLost builds a focus-lost notification.
func FocusLost(at time.Time) Notification {
	return Notification{Kind: NotificationFocusLost, Timestamp: at}
}

// Labels of the suspicious actions.
const (
	LabelCopy            = "Pressed Ctrl+C"
	LabelPaste           = "Pressed Ctrl+V"
	LabelCtrlTab         = "Pressed Ctrl+Tab"
	LabelCtrlMeta        = "Pressed Ctrl+Meta"
	LabelAltTab          = "Pressed Alt+Tab"
	LabelAltF4           = "Pressed Alt+F4"
	LabelMeta            = "Pressed Meta"
	LabelPrintScreen     = "Pressed PrtSc"
	LabelSwitchingWindow = "Switching Window"
)

// Rule pairs a predicate over a key notification with the label it yields.
type Rule struct {
	Label   string
	Matches func(n Notification) bool
}

func withControl(code KeyCode) func(Notification) bool {
	return func(n Notification) bool { return n.Modifiers.Control && n.Code == code }
}

func withAlt(code KeyCode) func(Notification) bool {
	return func(n Notification) bool { return n.Modifiers.Alt && n.Code == code }
}

func bare(code KeyCode) func(Notification) bool {
	return func(n Notification) bool { return n.Code == code }
}

// catalog is evaluated top-down, first match wins.
var catalog = []Rule{
	{LabelCopy, withControl(KeyC)},
	{LabelPaste, withControl(KeyV)},
	{LabelCtrlTab, withControl(KeyTab)},
	{LabelCtrlMeta, withControl(KeyMeta)},
	{LabelAltTab, withAlt(KeyTab)},
	{LabelAltF4, withAlt(KeyF4)},
	{LabelMeta, bare(KeyMeta)},
	{LabelPrintScreen, bare(KeyPrintScreen)},
}

// Rules returns a copy of the detection catalog in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(catalog))
	copy(out, catalog)
	return out
}

// Classify maps a notification to a suspicious-action label. The boolean is
// false when the notification is not suspicious.
func Classify(n Notification) (string, bool) {
	if n.Kind == NotificationFocusLost {
		return LabelSwitchingWindow, true
	}
	for _, r := range catalog {
		if r.Matches(n) {
			return r.Label, true
		}
	}
	return "", false
}
