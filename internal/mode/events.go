package mode

import (
	"fmt"
	"strings"
)

// SystemEvent is a synthesized, non-user prompt that narrates a state change
// to the language model. It lives for one call and is never persisted.
type SystemEvent struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Prompt renders the event as the message sent to the language model.
func (e SystemEvent) Prompt() string {
	return "[SYSTEM: " + e.Text + "]"
}

// EventForTransition returns the narration for a transition, if it has one.
func EventForTransition(t Transition) (SystemEvent, bool) {
	switch {
	case t.To == TableMode:
		return SystemEvent{Kind: "table_mode", Text: "Du upptäckte en kant. Du står på ett bord. Säkerhetsläge - ingen körning."}, true
	case t.From == TableMode && t.To == Listening:
		return SystemEvent{Kind: "floor", Text: "Du är på golvet igen. Normal rörelse återställd."}, true
	case t.To == ManualControl:
		return SystemEvent{Kind: "manual_start", Text: "Leon har tagit över kontrollerna. Du kan prata och röra huvudet men inte köra."}, true
	case t.From == ManualControl:
		return SystemEvent{Kind: "manual_end", Text: "Leon släppte kontrollerna. Du kan röra dig själv igen."}, true
	case t.To == Stuck:
		return SystemEvent{Kind: "stuck", Text: "Du körde in i något och sitter fast. Motorerna är stoppade."}, true
	case t.To == WakingUp:
		return SystemEvent{Kind: "waking_up", Text: "Du vaknar upp igen efter att ha sovit."}, true
	}
	return SystemEvent{}, false
}

// BatteryEvent narrates a battery level.
func BatteryEvent(percent int) SystemEvent {
	var mood string
	switch {
	case percent <= 5:
		mood = "Du måste sova nu."
	case percent <= 10:
		mood = "Du är väldigt trött."
	default:
		mood = "Du börjar bli trött."
	}
	return SystemEvent{Kind: "battery", Text: fmt.Sprintf("Batteri: %d%%. %s", percent, mood)}
}

// ThoughtEvent asks for a short curious remark about what the camera sees.
func ThoughtEvent(description string) SystemEvent {
	return SystemEvent{
		Kind: "thought",
		Text: fmt.Sprintf("Du utforskar rummet. Du ser: %s. Säg något kort och nyfiket om det du ser. Max 15 ord.", strings.TrimSpace(description)),
	}
}

// RideEvent narrates a manual drive by the operator. y is the forward stick axis.
func RideEvent(y int) SystemEvent {
	speed := y
	if speed < 0 {
		speed = -speed
	}
	direction := "bakåt"
	if y > 0 {
		direction = "framåt"
	}
	return SystemEvent{Kind: "ride", Text: fmt.Sprintf("Leon kör dig manuellt. Fart: %d. Riktning: %s.", speed, direction)}
}

// BatteryMilestones are the levels at which the battery is narrated.
var BatteryMilestones = []int{20, 10, 5}

// BatteryNarrator emits a battery event the first time each milestone is
// crossed. Charging above the highest milestone re-arms it.
type BatteryNarrator struct {
	announced map[int]bool
}

// Observe returns an event when percent crosses an unannounced milestone.
func (n *BatteryNarrator) Observe(percent int) (SystemEvent, bool) {
	if n.announced == nil {
		n.announced = map[int]bool{}
	}
	if percent > BatteryMilestones[0] {
		n.announced = map[int]bool{}
		return SystemEvent{}, false
	}
	hit := 0
	for _, m := range BatteryMilestones {
		if percent <= m && !n.announced[m] {
			n.announced[m] = true
			hit = m
		}
	}
	if hit == 0 {
		return SystemEvent{}, false
	}
	return BatteryEvent(percent), true
}
