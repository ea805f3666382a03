package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventForTransition(t *testing.T) {
	ev, ok := EventForTransition(Transition{From: Exploring, To: TableMode})
	require.True(t, ok)
	assert.Equal(t, "[SYSTEM: Du upptäckte en kant. Du står på ett bord. Säkerhetsläge - ingen körning.]", ev.Prompt())

	ev, ok = EventForTransition(Transition{From: TableMode, To: Listening})
	require.True(t, ok)
	assert.Equal(t, "floor", ev.Kind)

	ev, ok = EventForTransition(Transition{From: ManualControl, To: Exploring})
	require.True(t, ok)
	assert.Equal(t, "manual_end", ev.Kind)

	_, ok = EventForTransition(Transition{From: Listening, To: Conversation})
	assert.False(t, ok)
}

func TestRideEvent(t *testing.T) {
	assert.Equal(t, "Leon kör dig manuellt. Fart: 40. Riktning: framåt.", RideEvent(40).Text)
	assert.Equal(t, "Leon kör dig manuellt. Fart: 30. Riktning: bakåt.", RideEvent(-30).Text)
}

func TestThoughtEvent(t *testing.T) {
	ev := ThoughtEvent(" en röd sko ")
	assert.Equal(t, "[SYSTEM: Du utforskar rummet. Du ser: en röd sko. Säg något kort och nyfiket om det du ser. Max 15 ord.]", ev.Prompt())
}

func TestBatteryNarrator(t *testing.T) {
	var n BatteryNarrator

	_, ok := n.Observe(50)
	assert.False(t, ok)

	ev, ok := n.Observe(19)
	require.True(t, ok)
	assert.Equal(t, "Batteri: 19%. Du börjar bli trött.", ev.Text)

	_, ok = n.Observe(18)
	assert.False(t, ok, "milestone announced once")

	ev, ok = n.Observe(4)
	require.True(t, ok, "jumping past two milestones announces once")
	assert.Contains(t, ev.Text, "sova")
	_, ok = n.Observe(9)
	assert.False(t, ok)

	n.Observe(90)
	_, ok = n.Observe(20)
	assert.True(t, ok, "re-armed after charging")
}
