package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/apptreply/internal/observability/metrics"
	"github.com/wolfman30/apptreply/pkg/logging"
)

type engineFixture struct {
	engine    *Engine
	store     *memStore
	slots     *stubSlots
	turns     *memTurns
	responder *stubResponder
}

func newEngineFixture(t *testing.T, appt Appointment) *engineFixture {
	t.Helper()
	now := torontoNow(t)
	f := &engineFixture{
		store:     newMemStore(appt),
		slots:     newStubSlots(),
		turns:     &memTurns{},
		responder: &stubResponder{reply: "Posso ajudar com mais alguma coisa?"},
	}
	f.engine = NewEngine(Deps{
		Store:     f.store,
		Slots:     f.slots,
		Turns:     f.turns,
		Responder: f.responder,
		Clock:     fixedClock(now),
		Location:  now.Location(),
		Metrics:   metrics.NewDialogueMetrics(prometheus.NewRegistry()),
		Logger:    logging.Discard(),
	}, WithResponderTimeout(time.Second))
	return f
}

func (f *engineFixture) handle(t *testing.T, text string) Result {
	t.Helper()
	res, err := f.engine.HandleMessage(context.Background(), "a1", text)
	require.NoError(t, err)
	return res
}

func openAppointment(t *testing.T) Appointment {
	return Appointment{
		ID:            "a1",
		CompanyID:     "c1",
		AttendantID:   "att1",
		ScheduledDate: mustDate(t, "2025-05-13"),
		ScheduledTime: TimeOfDay{Hour: 10},
		Status:        StatusScheduled,
		DialogueOpen:  true,
		Version:       1,
	}
}

func withProposal(a Appointment, date *Date, at *TimeOfDay) Appointment {
	a.Rescheduling = true
	a.ProposedDate = date
	a.ProposedTime = at
	return a
}

func TestScenarioTomorrowAtTwoIsProposed(t *testing.T) {
	appt := openAppointment(t)
	appt.Rescheduling = true
	f := newEngineFixture(t, appt)
	f.slots.set("2025-05-11", "09:00:00", "14:00:00")

	res := f.handle(t, "amanhã às 14:00")

	assert.Equal(t, OutcomeSlotProposed, res.Outcome)
	assert.Equal(t, StateProposingSlot, res.State)
	assert.Contains(t, res.Reply, "sim ou não")
	stored := f.store.get("a1")
	require.NotNil(t, stored.ProposedDate)
	require.NotNil(t, stored.ProposedTime)
	assert.Equal(t, mustDate(t, "2025-05-11"), *stored.ProposedDate)
	assert.Equal(t, "14:00", stored.ProposedTime.String())
	assert.Equal(t, StatusScheduled, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestScenarioConfirmWithEmptyProposalAsksForBoth(t *testing.T) {
	appt := openAppointment(t)
	appt.Rescheduling = true
	f := newEngineFixture(t, appt)

	res := f.handle(t, "sim")

	assert.Equal(t, OutcomeInvalidTransition, res.Outcome)
	assert.Equal(t, render(LocalePT, replyNeedDateAndTime), res.Reply)
	assert.Equal(t, 0, f.store.updates)
	assert.Equal(t, StatusScheduled, f.store.get("a1").Status)
}

func TestScenarioDenyCancelsScheduled(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))

	res := f.handle(t, "N")

	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, StateCancelled, res.State)
	stored := f.store.get("a1")
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.False(t, stored.DialogueOpen)
}

func TestScenarioBareHourListsAlternativesForProposedDate(t *testing.T) {
	proposed := mustDate(t, "2025-05-12")
	f := newEngineFixture(t, withProposal(openAppointment(t), &proposed, nil))
	f.slots.set("2025-05-12", "10:00:00", "14:00:00", "16:00:00", "17:00:00")

	res := f.handle(t, "15h")

	assert.Equal(t, OutcomeSlotUnavailable, res.Outcome)
	assert.Contains(t, res.Reply, "12/05/2025")
	assert.Contains(t, res.Reply, "14:00, 16:00, 17:00")
	stored := f.store.get("a1")
	assert.Nil(t, stored.ProposedTime)
	require.NotNil(t, stored.ProposedDate)
	assert.Equal(t, proposed, *stored.ProposedDate)
	assert.Equal(t, 0, f.store.updates)
}

func TestConfirmWithoutRescheduleConfirms(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))

	res := f.handle(t, "Y")

	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, StateConfirmed, res.State)
	assert.Equal(t, render(LocaleEN, replyConfirmed, "13/05/2025", "10:00"), res.Reply)
	stored := f.store.get("a1")
	assert.Equal(t, StatusConfirmed, stored.Status)
	assert.False(t, stored.DialogueOpen)
}

func TestConfirmNeverCommitsIncompleteProposal(t *testing.T) {
	date := mustDate(t, "2025-05-12")
	at := TimeOfDay{Hour: 15}
	cases := map[string]Appointment{
		"none":      withProposal(openAppointment(t), nil, nil),
		"date only": withProposal(openAppointment(t), &date, nil),
		"time only": withProposal(openAppointment(t), nil, &at),
	}
	for name, appt := range cases {
		t.Run(name, func(t *testing.T) {
			f := newEngineFixture(t, appt)
			f.slots.set("2025-05-12", "15:00")
			for _, word := range []string{"y", "yes", "sim", "oui", "ok"} {
				res := f.handle(t, word)
				assert.Equal(t, OutcomeInvalidTransition, res.Outcome)
				status := f.store.get("a1").Status
				assert.NotEqual(t, StatusConfirmed, status)
				assert.NotEqual(t, StatusRescheduled, status)
			}
		})
	}
}

func TestConfirmCompleteProposalReschedules(t *testing.T) {
	date := mustDate(t, "2025-05-12")
	at := TimeOfDay{Hour: 15}
	f := newEngineFixture(t, withProposal(openAppointment(t), &date, &at))
	f.slots.set("2025-05-12", "15:00:00")

	res := f.handle(t, "sim")

	assert.Equal(t, OutcomeRescheduled, res.Outcome)
	assert.Equal(t, StateRescheduled, res.State)
	stored := f.store.get("a1")
	assert.Equal(t, StatusRescheduled, stored.Status)
	assert.Equal(t, date, stored.ScheduledDate)
	assert.Equal(t, at, stored.ScheduledTime)
	assert.False(t, stored.Rescheduling)
	assert.False(t, stored.DialogueOpen)
	assert.Nil(t, stored.ProposedDate)
	assert.Nil(t, stored.ProposedTime)
}

func TestConfirmFailsClosedWhenSlotVanished(t *testing.T) {
	date := mustDate(t, "2025-05-12")
	at := TimeOfDay{Hour: 15}
	f := newEngineFixture(t, withProposal(openAppointment(t), &date, &at))
	f.slots.set("2025-05-12", "16:00:00")

	res := f.handle(t, "sim")

	assert.Equal(t, OutcomeSlotRaceLost, res.Outcome)
	assert.ErrorIs(t, res.Outcome.Err(), ErrSlotRaceLost)
	assert.Equal(t, StateOpen, res.State)
	stored := f.store.get("a1")
	assert.Equal(t, StatusScheduled, stored.Status)
	assert.Equal(t, mustDate(t, "2025-05-13"), stored.ScheduledDate)
	assert.True(t, stored.DialogueOpen)
	assert.True(t, stored.Rescheduling)
	assert.Nil(t, stored.ProposedDate)
	assert.Nil(t, stored.ProposedTime)
}

func TestConfirmFailsClosedWhenSlotLookupErrors(t *testing.T) {
	date := mustDate(t, "2025-05-12")
	at := TimeOfDay{Hour: 15}
	f := newEngineFixture(t, withProposal(openAppointment(t), &date, &at))
	f.slots.fail("2025-05-12", errBackend)

	res := f.handle(t, "sim")
	assert.Equal(t, OutcomeSlotRaceLost, res.Outcome)
	assert.Equal(t, StatusScheduled, f.store.get("a1").Status)
}

func TestDenyDuringRescheduleClearsProposal(t *testing.T) {
	date := mustDate(t, "2025-05-12")
	at := TimeOfDay{Hour: 15}
	f := newEngineFixture(t, withProposal(openAppointment(t), &date, &at))

	res := f.handle(t, "não")

	assert.Equal(t, OutcomeProposalCleared, res.Outcome)
	assert.Equal(t, StateOpen, res.State)
	stored := f.store.get("a1")
	assert.Equal(t, StatusScheduled, stored.Status)
	assert.True(t, stored.Rescheduling)
	assert.True(t, stored.DialogueOpen)
	assert.Nil(t, stored.ProposedDate)
	assert.Nil(t, stored.ProposedTime)
}

func TestRescheduleStart(t *testing.T) {
	date := mustDate(t, "2025-05-12")
	f := newEngineFixture(t, withProposal(openAppointment(t), &date, nil))

	res := f.handle(t, "r")

	assert.Equal(t, OutcomeRescheduleStarted, res.Outcome)
	assert.Equal(t, render(LocalePT, replyRescheduleStarted), res.Reply)
	stored := f.store.get("a1")
	assert.True(t, stored.Rescheduling)
	assert.True(t, stored.DialogueOpen)
	assert.Nil(t, stored.ProposedDate)
}

func TestDateOnlyThenTimeOnlyBuildsProposal(t *testing.T) {
	appt := openAppointment(t)
	appt.Rescheduling = true
	f := newEngineFixture(t, appt)
	f.slots.set("2025-05-12", "09:00:00", "15:00:00")

	res := f.handle(t, "pode ser dia 12/05?")
	assert.Equal(t, OutcomeDateProposed, res.Outcome)
	assert.Contains(t, res.Reply, "09:00, 15:00")
	stored := f.store.get("a1")
	require.NotNil(t, stored.ProposedDate)
	assert.Equal(t, mustDate(t, "2025-05-12"), *stored.ProposedDate)
	assert.Nil(t, stored.ProposedTime)

	res = f.handle(t, "15:00")
	assert.Equal(t, OutcomeSlotProposed, res.Outcome)
	stored = f.store.get("a1")
	require.NotNil(t, stored.ProposedTime)
	assert.Equal(t, "15:00", stored.ProposedTime.String())

	res = f.handle(t, "sim")
	assert.Equal(t, OutcomeRescheduled, res.Outcome)
	assert.Equal(t, mustDate(t, "2025-05-12"), f.store.get("a1").ScheduledDate)
}

func TestDateOnlyWithoutSlotsProposesNextDayWithSlots(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	f.slots.set("2025-05-14", "11:00")

	res := f.handle(t, "12/05")

	assert.Equal(t, OutcomeDateProposed, res.Outcome)
	assert.Contains(t, res.Reply, "14/05/2025")
	stored := f.store.get("a1")
	require.NotNil(t, stored.ProposedDate)
	assert.Equal(t, mustDate(t, "2025-05-14"), *stored.ProposedDate)
	assert.True(t, stored.Rescheduling)
}

func TestNoAvailabilityAtAll(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))

	res := f.handle(t, "12/05 às 15h")

	assert.Equal(t, OutcomeNoAvailability, res.Outcome)
	assert.Equal(t, 0, f.store.updates)
}

func TestPastDateIsRefused(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	f.slots.set("2025-05-01", "10:00")

	res := f.handle(t, "01/05/2025 10:00")

	assert.Equal(t, OutcomeNoAvailability, res.Outcome)
	assert.Equal(t, 0, f.store.updates)
}

func TestTimeWithoutAnyDateAsksWhichDay(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))

	res := f.handle(t, "pode ser às 15h?")

	assert.Equal(t, OutcomeExtractionAmbiguous, res.Outcome)
	assert.Equal(t, render(LocalePT, replyWhichDay, "15:00"), res.Reply)
	assert.Equal(t, 0, f.responder.callCount())
}

func TestFreeTextIsIdempotent(t *testing.T) {
	proposed := mustDate(t, "2025-05-12")
	f := newEngineFixture(t, withProposal(openAppointment(t), &proposed, nil))
	f.slots.set("2025-05-12", "10:00:00", "14:00:00")

	first := f.handle(t, "amanhã às 15:00")
	before := f.store.get("a1")
	second := f.handle(t, "amanhã às 15:00")

	assert.Equal(t, first, second)
	assert.Equal(t, before, f.store.get("a1"))

	first = f.handle(t, "12/05")
	snapshot := f.store.get("a1")
	second = f.handle(t, "12/05")
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, f.store.get("a1"))
}

func TestFallbackOnlyWhenNothingStructured(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))

	res := f.handle(t, "qual o endereço da clínica?")

	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.Equal(t, "Posso ajudar com mais alguma coisa?", res.Reply)
	assert.Equal(t, 1, f.responder.callCount())
	assert.Equal(t, 0, f.store.updates)

	turns := f.turns.all()
	require.Len(t, turns, 2)
	assert.Equal(t, SenderClient, turns[0].Sender)
	assert.Equal(t, "qual o endereço da clínica?", turns[0].Text)
	assert.Equal(t, SenderSystem, turns[1].Sender)
	assert.Equal(t, res.Reply, turns[1].Text)
}

func TestFallbackCannotMutate(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	f.responder.reply = "Your appointment is confirmed!"

	res := f.handle(t, "can you just confirm it for me")

	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.NotContains(t, res.Reply, "is confirmed")
	assert.Equal(t, StatusScheduled, f.store.get("a1").Status)
	assert.Equal(t, 0, f.store.updates)
}

func TestClosedDialogue(t *testing.T) {
	appt := openAppointment(t)
	appt.DialogueOpen = false
	f := newEngineFixture(t, appt)

	for _, text := range []string{"qual o endereço?", "sim", "n", "r", "amanhã às 14:00"} {
		res := f.handle(t, text)
		assert.Equal(t, OutcomeDialogueClosed, res.Outcome, text)
		assert.Equal(t, StateScheduled, res.State)
	}
	assert.Equal(t, 0, f.responder.callCount())
	assert.Equal(t, 0, f.store.updates)
	assert.Len(t, f.turns.all(), 10)
}

func TestReplyFollowsMessageLocale(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	res := f.handle(t, "oui")
	assert.Equal(t, render(LocaleFR, replyConfirmed, "13/05/2025", "10:00"), res.Reply)
}

func TestDefaultLocaleOption(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	now := torontoNow(t)
	e := NewEngine(Deps{
		Store: f.store, Slots: f.slots, Turns: f.turns, Responder: f.responder,
		Clock: fixedClock(now), Location: now.Location(), Logger: logging.Discard(),
	}, WithDefaultLocale(LocaleES))

	res, err := e.HandleMessage(context.Background(), "a1", "R")
	require.NoError(t, err)
	assert.Equal(t, render(LocaleES, replyRescheduleStarted), res.Reply)
}

func TestUnknownAppointment(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	_, err := f.engine.HandleMessage(context.Background(), "missing", "sim")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.Empty(t, f.turns.all())
}

func TestStoreUnavailableOnLoad(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	f.store.getErr = errBackend

	res := f.handle(t, "sim")

	assert.Equal(t, OutcomeStoreUnavailable, res.Outcome)
	assert.Equal(t, render(LocalePT, replyStoreUnavailable), res.Reply)
}

func TestStoreUnavailableOnUpdate(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	f.store.updateErr = errBackend

	res := f.handle(t, "sim")

	assert.Equal(t, OutcomeStoreUnavailable, res.Outcome)
	assert.Equal(t, StateOpen, res.State)
	assert.Equal(t, StatusScheduled, f.store.get("a1").Status)
}

func TestVersionConflictRedecidesOnce(t *testing.T) {
	date := mustDate(t, "2025-05-12")
	at := TimeOfDay{Hour: 15}
	f := newEngineFixture(t, openAppointment(t))
	f.slots.set("2025-05-12", "15:00")
	// A concurrent request started a reschedule with a full proposal.
	f.store.beforeUpdate = func(s *memStore) {
		a := s.get("a1")
		a = withProposal(a, &date, &at)
		a.Version++
		s.put(a)
	}

	res := f.handle(t, "sim")

	assert.Equal(t, OutcomeRescheduled, res.Outcome)
	stored := f.store.get("a1")
	assert.Equal(t, StatusRescheduled, stored.Status)
	assert.Equal(t, date, stored.ScheduledDate)
	assert.Equal(t, int64(3), stored.Version)
}

func TestRepeatedVersionConflictGivesRetryReply(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	var bump func(*memStore)
	bump = func(s *memStore) {
		a := s.get("a1")
		a.Version++
		s.put(a)
		s.mu.Lock()
		s.beforeUpdate = bump
		s.mu.Unlock()
	}
	f.store.beforeUpdate = bump

	res := f.handle(t, "n")

	assert.Equal(t, OutcomeStoreUnavailable, res.Outcome)
	assert.Equal(t, StatusScheduled, f.store.get("a1").Status)
}

func TestTurnLogFailureDoesNotBlockReply(t *testing.T) {
	f := newEngineFixture(t, openAppointment(t))
	f.turns.appendErr = errBackend

	res := f.handle(t, "sim")
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
}

func TestUnlock(t *testing.T) {
	closed := openAppointment(t)
	closed.DialogueOpen = false
	f := newEngineFixture(t, closed)

	require.NoError(t, f.engine.Unlock(context.Background(), "a1"))
	assert.True(t, f.store.get("a1").DialogueOpen)

	require.NoError(t, f.engine.Unlock(context.Background(), "a1"), "unlocking an open dialogue is a no-op")
	assert.Equal(t, 1, f.store.updates)

	res := f.handle(t, "sim")
	assert.Equal(t, OutcomeConfirmed, res.Outcome)

	err := f.engine.Unlock(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestUnlockRefusesCancelled(t *testing.T) {
	cancelled := openAppointment(t)
	cancelled.Status = StatusCancelled
	cancelled.DialogueOpen = false
	f := newEngineFixture(t, cancelled)

	err := f.engine.Unlock(context.Background(), "a1")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, f.store.get("a1").DialogueOpen)
}

func TestNewEnginePanicsWithoutRequiredDeps(t *testing.T) {
	assert.Panics(t, func() { NewEngine(Deps{}) })
	assert.Panics(t, func() { NewEngine(Deps{Store: newMemStore()}) })
	assert.Panics(t, func() { NewEngine(Deps{Store: newMemStore(), Slots: newStubSlots()}) })
}
