// Package actions is the registry of physical actions the robot can perform.
package actions

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies an action for mode gating.
type Category string

const (
	// Body actions move the drivetrain.
	Body Category = "body"
	// Head actions move the camera pan/tilt servos only.
	Head Category = "head"
)

// Action is an immutable registry entry.
type Action struct {
	Name        string        `json:"name"`
	Category    Category      `json:"category"`
	Duration    time.Duration `json:"duration"`
	Description string        `json:"description"`
}

// IsBody reports whether the action moves the drivetrain.
func (a Action) IsBody() bool { return a.Category == Body }

// Action names.
const (
	MoveForward   = "move_forward"
	MoveBackward  = "move_backward"
	TurnLeft      = "turn_left"
	TurnRight     = "turn_right"
	Stop          = "stop"
	RockBackForth = "rock_back_forth"
	Dance         = "dance"

	LookUp       = "look_up"
	LookDown     = "look_down"
	LookLeft     = "look_left"
	LookRight    = "look_right"
	LookAround   = "look_around"
	LookAtPerson = "look_at_person"
	Nod          = "nod"
	ShakeHead    = "shake_head"
	TiltHead     = "tilt_head"
	ResetHead    = "reset_head"
)

// Registry maps normalized action names to their entries.
type Registry struct {
	byName map[string]Action
	order  []string
}

// NewRegistry builds a registry. Names are normalized; duplicates are an error.
func NewRegistry(list []Action) (*Registry, error) {
	r := &Registry{byName: make(map[string]Action, len(list))}
	for _, a := range list {
		name := Normalize(a.Name)
		if name == "" {
			return nil, fmt.Errorf("action with empty name")
		}
		if a.Category != Body && a.Category != Head {
			return nil, fmt.Errorf("action %q: invalid category %q", name, a.Category)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate action %q", name)
		}
		a.Name = name
		r.byName[name] = a
		r.order = append(r.order, name)
	}
	return r, nil
}

// Default returns the built-in action set of the robot car.
func Default() *Registry {
	r, err := NewRegistry(defaultActions)
	if err != nil {
		panic(err)
	}
	return r
}

var defaultActions = []Action{
	{MoveForward, Body, 1500 * time.Millisecond, "Drive forward - interest, approaching"},
	{MoveBackward, Body, 1500 * time.Millisecond, "Drive backward - surprised, skeptical"},
	{TurnLeft, Body, time.Second, "Turn left"},
	{TurnRight, Body, time.Second, "Turn right"},
	{Stop, Body, 0, "Stop all movement"},
	{RockBackForth, Body, 1200 * time.Millisecond, "Rock back and forth - laughing, amused"},
	{Dance, Body, 3300 * time.Millisecond, "Dance - celebration, joy (rare)"},

	{LookUp, Head, 0, "Look up - thinking, wondering"},
	{LookDown, Head, 0, "Look down - examining, tired"},
	{LookLeft, Head, 0, "Look left"},
	{LookRight, Head, 0, "Look right"},
	{LookAround, Head, 1500 * time.Millisecond, "Pan around - curious, exploring"},
	{LookAtPerson, Head, 0, "Center camera - attentive, listening"},
	{Nod, Head, 900 * time.Millisecond, "Nod - yes, agree"},
	{ShakeHead, Head, 900 * time.Millisecond, "Shake head - no, resigned amusement"},
	{TiltHead, Head, 0, "Tilt head - confused, curious"},
	{ResetHead, Head, 0, "Reset head to center"},
}

// Normalize lowercases and trims an action name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup finds an action by (unnormalized) name.
func (r *Registry) Lookup(name string) (Action, bool) {
	a, ok := r.byName[Normalize(name)]
	return a, ok
}

// All returns every action in registration order.
func (r *Registry) All() []Action {
	out := make([]Action, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

// Names returns the names of all actions in a category, in registration order.
func (r *Registry) Names(c Category) []string {
	var out []string
	for _, n := range r.order {
		if r.byName[n].Category == c {
			out = append(out, n)
		}
	}
	return out
}
