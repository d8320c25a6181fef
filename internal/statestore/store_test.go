package statestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

func newStore(opts ...Option) *Store {
	return New(logging.NewNopLogger(), opts...)
}

func TestGetReturnsDeepCopy(t *testing.T) {
	s := newStore()
	s.Set(Partial{AnalysisResults: Ptr([]location.AnalysisResult{
		{LocationID: "a", TotalScore: 80},
	})})

	snap := s.Get()
	snap.AnalysisResults[0].TotalScore = 1
	snap.LoadingStates["poisoned"] = true

	fresh := s.Get()
	assert.Equal(t, 80.0, fresh.AnalysisResults[0].TotalScore)
	assert.NotContains(t, fresh.LoadingStates, "poisoned")
}

func TestSetFiresPerKeyEventsThenCatchAll(t *testing.T) {
	s := newStore()

	var order []string
	s.Subscribe(EventModeChanged, func(Snapshot) { order = append(order, EventModeChanged) })
	s.Subscribe(EventPageChanged, func(Snapshot) { order = append(order, EventPageChanged) })
	s.Subscribe(EventStateChanged, func(Snapshot) { order = append(order, EventStateChanged) })

	s.Set(Partial{
		CurrentMode: Ptr(ModeRegion),
		CurrentPage: Ptr("results"),
	})

	assert.Equal(t, []string{EventModeChanged, EventPageChanged, EventStateChanged}, order)
}

func TestSetSkipsEventsForUnchangedFields(t *testing.T) {
	s := newStore()
	fired := 0
	s.Subscribe(EventModeChanged, func(Snapshot) { fired++ })

	s.Set(Partial{CurrentMode: Ptr(ModePoint)}) // already the default
	assert.Zero(t, fired)

	s.Set(Partial{CurrentMode: Ptr(ModeRegion)})
	assert.Equal(t, 1, fired)
}

func TestUnsubscribe(t *testing.T) {
	s := newStore()
	fired := 0
	unsub := s.Subscribe(EventStateChanged, func(Snapshot) { fired++ })

	s.Set(Partial{CurrentPage: Ptr("a")})
	unsub()
	s.Set(Partial{CurrentPage: Ptr("b")})

	assert.Equal(t, 1, fired)
}

func TestHistoryBoundedAndGoBack(t *testing.T) {
	s := newStore()

	for i := 0; i < 15; i++ {
		s.Set(Partial{CurrentPage: Ptr(string(rune('a' + i)))})
	}
	assert.Equal(t, DefaultHistoryDepth, s.HistoryLen())

	require.True(t, s.GoBack())
	assert.Equal(t, "n", s.Get().CurrentPage)
	require.True(t, s.GoBack())
	assert.Equal(t, "m", s.Get().CurrentPage)

	// Drain the rest.
	for s.GoBack() {
	}
	assert.False(t, s.GoBack())
}

func TestGoBackFiresStateChanged(t *testing.T) {
	s := newStore()
	s.Set(Partial{CurrentPage: Ptr("setup")})

	fired := 0
	s.Subscribe(EventStateChanged, func(Snapshot) { fired++ })

	require.True(t, s.GoBack())
	assert.Equal(t, 1, fired)
}

func TestSetFuncAtomicReadModifyWrite(t *testing.T) {
	s := newStore()
	s.Set(Partial{AnalysisResults: Ptr([]location.AnalysisResult{{LocationID: "a"}})})

	s.SetFunc(func(snap Snapshot) Partial {
		results := append(snap.AnalysisResults, location.AnalysisResult{LocationID: "b"})
		return Partial{AnalysisResults: &results}
	})

	snap := s.Get()
	require.Len(t, snap.AnalysisResults, 2)
	assert.Equal(t, "b", snap.AnalysisResults[1].LocationID)
}

func TestAddErrorMonotonicIDs(t *testing.T) {
	s := newStore()

	id1 := s.AddError(apperrors.CodeNetwork, "backend unreachable")
	id2 := s.AddError(apperrors.CodeTimeout, "timed out")

	assert.Greater(t, id2, id1)

	snap := s.Get()
	require.Len(t, snap.Errors, 2)
	assert.Equal(t, apperrors.CodeNetwork, snap.Errors[0].Code)

	s.ClearErrors()
	assert.Empty(t, s.Get().Errors)
}

func TestNotifyAutoExpires(t *testing.T) {
	s := newStore()
	defer s.Close()

	s.Notify(Notification{Kind: NoticeWarning, Message: "fallback data", AutoExpire: 30 * time.Millisecond})
	require.Len(t, s.Get().Notifications, 1)

	assert.Eventually(t, func() bool {
		return len(s.Get().Notifications) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestNotifyStickyNeverExpires(t *testing.T) {
	s := newStore()
	defer s.Close()

	id := s.Notify(Notification{Kind: NoticeError, Message: "analysis failed", Sticky: true})

	time.Sleep(50 * time.Millisecond)
	require.Len(t, s.Get().Notifications, 1)

	s.RemoveNotification(id)
	assert.Empty(t, s.Get().Notifications)
}

func TestRemoveNotificationCancelsTimerAndIsIdempotent(t *testing.T) {
	s := newStore()
	defer s.Close()

	id := s.Notify(Notification{Message: "transient", AutoExpire: time.Hour})
	s.RemoveNotification(id)
	s.RemoveNotification(id) // no-op
	assert.Empty(t, s.Get().Notifications)
}

func TestNotifyDefaultsKindAndExpiry(t *testing.T) {
	s := newStore()
	defer s.Close()

	s.Notify(Notification{Message: "hello"})

	snap := s.Get()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, NoticeInfo, snap.Notifications[0].Kind)
	assert.Equal(t, DefaultNotificationExpiry, snap.Notifications[0].AutoExpire)
}

func TestObserverPanicDoesNotPoisonStore(t *testing.T) {
	s := newStore()

	ran := false
	s.Subscribe(EventStateChanged, func(Snapshot) { panic("bad observer") })
	s.Subscribe(EventStateChanged, func(Snapshot) { ran = true })

	assert.NotPanics(t, func() {
		s.Set(Partial{CurrentPage: Ptr("results")})
	})
	assert.True(t, ran, "later observers still run")
	assert.Equal(t, "results", s.Get().CurrentPage)
}

func TestObserverCanReadStoreReentrantly(t *testing.T) {
	s := newStore()

	var seen Mode
	s.Subscribe(EventModeChanged, func(Snapshot) {
		seen = s.Get().CurrentMode
	})

	s.Set(Partial{CurrentMode: Ptr(ModeRegion)})
	assert.Equal(t, ModeRegion, seen)
}

func TestSetLoading(t *testing.T) {
	s := newStore()

	s.SetLoading("analysis", true)
	assert.True(t, s.Get().LoadingStates["analysis"])

	s.SetLoading("analysis", false)
	assert.False(t, s.Get().LoadingStates["analysis"])
}
