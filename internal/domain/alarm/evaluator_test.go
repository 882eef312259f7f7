package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testEvaluator uses the reference windows: 10 minute staleness, 5 minute cooldown.
func testEvaluator() Evaluator {
	return Evaluator{
		StaleThreshold: 10 * time.Minute,
		NotifyCooldown: 5 * time.Minute,
	}
}

// activeObs builds an active observation sampled at the given event time.
func activeObs(eventTime, observedAt time.Time) Observation {
	return Observation{
		EntityID:   "68b0c2f1",
		Value:      ValueActive,
		Raw:        int64(1),
		EventTime:  eventTime,
		ObservedAt: observedAt,
	}
}

// TestEvaluateFreshTransitionNotifies verifies the basic inactive-to-active call.
func TestEvaluateFreshTransitionNotifies(t *testing.T) {
	t.Parallel()

	now := time.Now()
	out := testEvaluator().Evaluate(State{}, activeObs(now, now), now)

	require.Equal(t, DecisionNotify, out.Decision)
	require.False(t, out.Stale)
}

// TestEvaluateAlreadyActiveStaysSilent verifies at most one call per episode.
func TestEvaluateAlreadyActiveStaysSilent(t *testing.T) {
	t.Parallel()

	now := time.Now()
	prev := State{}.WithNotified(now.Add(-2 * time.Minute))

	out := testEvaluator().Evaluate(prev, activeObs(now, now), now)
	require.Equal(t, DecisionAlreadyNotified, out.Decision)
	require.Equal(t, ValueActive, out.Next.LastValue)

	// Replaying the same observation any number of times changes nothing.
	for i := 0; i < 5; i++ {
		out = testEvaluator().Evaluate(out.Next, activeObs(now, now), now)
		require.Equal(t, DecisionAlreadyNotified, out.Decision)
	}
}

// TestEvaluateStaleActivation verifies old alarms are recorded, not called for.
func TestEvaluateStaleActivation(t *testing.T) {
	t.Parallel()

	now := time.Now()
	obs := activeObs(now.Add(-20*time.Minute), now)

	out := testEvaluator().Evaluate(State{}, obs, now)
	require.Equal(t, DecisionSuppressedStale, out.Decision)
	require.True(t, out.Stale)
	require.Equal(t, ValueActive, out.Next.LastValue)
	require.False(t, out.Next.Notified())

	// A later fresh reading in the same episode must not call either:
	// the stale activation already marked the episode as seen.
	out = testEvaluator().Evaluate(out.Next, activeObs(now, now), now)
	require.Equal(t, DecisionAlreadyNotified, out.Decision)
}

// TestEvaluateMissingEventTimeIsNotStale pins the documented fallback:
// an unparseable or absent sample time never suppresses a call.
func TestEvaluateMissingEventTimeIsNotStale(t *testing.T) {
	t.Parallel()

	now := time.Now()
	obs := activeObs(time.Time{}, now)

	out := testEvaluator().Evaluate(State{}, obs, now)
	require.Equal(t, DecisionNotify, out.Decision)
}

// TestEvaluateCooldownSpacesRetries verifies failed attempts retry after the
// cooldown, without the entity ever being marked notified in between.
func TestEvaluateCooldownSpacesRetries(t *testing.T) {
	t.Parallel()

	ev := testEvaluator()
	now := time.Now()

	out := ev.Evaluate(State{}, activeObs(now, now), now)
	require.Equal(t, DecisionNotify, out.Decision)

	// The call fails: state records the attempt only.
	failed := out.Next.WithAttemptFailed(now)
	require.False(t, failed.Notified())
	require.NotEqual(t, ValueActive, failed.LastValue)

	// Two minutes later the transition is still pending but inside cooldown.
	later := now.Add(2 * time.Minute)
	out = ev.Evaluate(failed, activeObs(later, later), later)
	require.Equal(t, DecisionSuppressedCooldown, out.Decision)

	// Past the cooldown the retry goes through.
	later = now.Add(6 * time.Minute)
	out = ev.Evaluate(out.Next, activeObs(later, later), later)
	require.Equal(t, DecisionNotify, out.Decision)
}

// TestEvaluateClearResetsEpisode verifies the active-inactive-active flap:
// clearing wipes the notification times so the next activation calls again.
func TestEvaluateClearResetsEpisode(t *testing.T) {
	t.Parallel()

	ev := testEvaluator()
	now := time.Now()

	notified := State{}.WithNotified(now)

	// Alarm clears 20 seconds later.
	clearAt := now.Add(20 * time.Second)
	out := ev.Evaluate(notified, Observation{
		EntityID:   "68b0c2f1",
		Value:      ValueInactive,
		Raw:        int64(0),
		ObservedAt: clearAt,
	}, clearAt)
	require.Equal(t, DecisionCleared, out.Decision)
	require.Equal(t, ValueInactive, out.Next.LastValue)
	require.False(t, out.Next.Notified())
	require.True(t, out.Next.LastAttemptAt.IsZero())

	// Re-activation 40 seconds after the original call, well inside what the
	// cooldown would have been, still notifies: the episode was reset.
	again := now.Add(40 * time.Second)
	out = ev.Evaluate(out.Next, activeObs(again, again), again)
	require.Equal(t, DecisionNotify, out.Decision)
}

// TestEvaluateUnknownChangesNothing verifies absent or mistyped fields no-op.
func TestEvaluateUnknownChangesNothing(t *testing.T) {
	t.Parallel()

	now := time.Now()
	prev := State{}.WithNotified(now.Add(-time.Minute))

	out := testEvaluator().Evaluate(prev, Observation{
		EntityID:   "68b0c2f1",
		Value:      ValueUnknown,
		ObservedAt: now,
	}, now)

	require.Equal(t, DecisionNone, out.Decision)
	require.Equal(t, prev, out.Next)
}

// TestEvaluateInactiveWhileInactive verifies steady inactive readings no-op
// while keeping attempt history for cooldown purposes.
func TestEvaluateInactiveWhileInactive(t *testing.T) {
	t.Parallel()

	now := time.Now()
	prev := State{LastValue: ValueInactive}.WithAttemptFailed(now.Add(-time.Minute))

	out := testEvaluator().Evaluate(prev, Observation{
		EntityID:   "68b0c2f1",
		Value:      ValueInactive,
		Raw:        int64(0),
		ObservedAt: now,
	}, now)

	require.Equal(t, DecisionNone, out.Decision)
	require.Equal(t, ValueInactive, out.Next.LastValue)
	require.Equal(t, prev.LastAttemptAt, out.Next.LastAttemptAt)
}

// TestNotificationCountBounds checks the sequence-level property: calls fired
// never exceed the number of inactive-to-active transitions.
func TestNotificationCountBounds(t *testing.T) {
	t.Parallel()

	ev := testEvaluator()
	now := time.Now()

	values := []Value{
		ValueInactive, ValueActive, ValueActive, ValueUnknown, ValueActive,
		ValueInactive, ValueInactive, ValueActive, ValueActive, ValueInactive,
	}

	transitions := 0
	notifications := 0
	state := State{}
	lastSeen := ValueInactive

	for i, v := range values {
		at := now.Add(time.Duration(i) * 10 * time.Minute)
		if v == ValueActive && lastSeen != ValueActive {
			transitions++
		}

		if v != ValueUnknown {
			lastSeen = v
		}

		out := ev.Evaluate(state, Observation{
			EntityID:   "68b0c2f1",
			Value:      v,
			ObservedAt: at,
		}, at)

		state = out.Next
		if out.Decision == DecisionNotify {
			notifications++
			state = state.WithNotified(at)
		}
	}

	require.Equal(t, 2, transitions)
	require.Equal(t, transitions, notifications)
}
