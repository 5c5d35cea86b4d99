package service

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHostID  int64 = 1
	testUserA   int64 = 2
	testUserB   int64 = 3
	testVenueID int64 = 3
	testEventID int64 = 7
)

type lineupFixture struct {
	store    *memStore
	hub      *fakeHub
	notifier *recordingNotifier
	activity *recordingActivity
	svc      LineupService
}

func newLineupFixture(t *testing.T) *lineupFixture {
	t.Helper()

	store := newMemStore()
	store.addUser(testHostID, "Host "+gofakeit.LastName(), true)
	store.addUser(testUserA, gofakeit.Name(), true)
	store.addUser(testUserB, gofakeit.Name(), true)
	store.addVenue(testVenueID, "The Basement", "UTC")
	store.addEvent(testEventID, testVenueID, testHostID)

	f := &lineupFixture{
		store:    store,
		hub:      &fakeHub{},
		notifier: &recordingNotifier{},
		activity: &recordingActivity{},
	}
	f.svc = NewLineupService(
		fakeTx{store}, fakeSlots{store}, fakeEvents{store}, fakeVenues{store}, fakeUsers{store},
		f.notifier, f.hub, f.activity, nil,
		LineupServiceConfig{MaxSlotNumber: 100, Formatter: NewTimeFormatter("15:04", "UTC")},
	)
	return f
}

func (f *lineupFixture) event() *entity.Event {
	return f.store.events[testEventID]
}

var (
	hostActor  = entity.UserIdentity(testHostID)
	userAActor = entity.UserIdentity(testUserA)
	userBActor = entity.UserIdentity(testUserB)
)

func TestClaimSlotAuthenticated(t *testing.T) {
	f := newLineupFixture(t)
	ctx := context.Background()

	got, err := f.svc.ClaimSlot(ctx, userAActor, &ClaimSlotRequest{EventID: testEventID, SlotNumber: 3})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 19, 30, 0, 0, time.UTC), got.StartTime)
	assert.Equal(t, f.store.users[testUserA].Name, got.SlotName)
	require.NotNil(t, got.UserID)
	assert.Equal(t, testUserA, *got.UserID)
	assert.Equal(t, "authenticated:2", got.CreatedBy)

	frames := f.hub.ofType(entity.MessageLineupUpdate)
	require.Len(t, frames, 1)
	assert.Equal(t, entity.ActionCreate, frames[0].env.Action)
	assert.Equal(t, testEventID, *frames[0].env.EventID)
	assert.Len(t, f.activity.envs, 1)

	toHost := f.notifier.to(testHostID)
	require.Len(t, toHost, 1)
	assert.Equal(t, entity.NotificationLineupSignup, toHost[0].Type)
	assert.Equal(t, entity.CategoryLineup, toHost[0].Category)
	assert.Contains(t, toHost[0].Message, "slot #3")

	_, err = f.svc.ClaimSlot(ctx, userAActor, &ClaimSlotRequest{EventID: testEventID, SlotNumber: 9})
	assert.ErrorIs(t, err, entity.ErrDuplicateSlot)
	assert.Equal(t, "only one slot per user per event allowed", err.Error())
	assert.Len(t, f.store.slotNumbers(testEventID), 1)
}

func TestClaimSlotNonUserTwice(t *testing.T) {
	f := newLineupFixture(t)
	ctx := context.Background()
	actor := entity.NonUserIdentity("abc", "10.0.0.1")

	first, err := f.svc.ClaimSlot(ctx, actor, &ClaimSlotRequest{EventID: testEventID, SlotNumber: 1, SlotName: "Sam"})
	require.NoError(t, err)
	require.NotNil(t, first.NonUserID)
	assert.Equal(t, "abc", *first.NonUserID)
	require.NotNil(t, first.IPAddress)
	assert.Equal(t, "10.0.0.1", *first.IPAddress)

	_, err = f.svc.ClaimSlot(ctx, actor, &ClaimSlotRequest{EventID: testEventID, SlotNumber: 2, SlotName: "Sam again"})
	require.ErrorIs(t, err, entity.ErrDuplicateSlot)
	assert.Equal(t, entity.ClassConflict, entity.ClassOf(err))
}

func TestClaimSlotRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *lineupFixture)
		actor   entity.Identity
		req     ClaimSlotRequest
		wantErr error
	}{
		{
			name:    "inactive event",
			mutate:  func(f *lineupFixture) { f.event().Active = false },
			actor:   userAActor,
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 1},
			wantErr: entity.ErrEventInactive,
		},
		{
			name:    "signup closed",
			mutate:  func(f *lineupFixture) { f.event().SignupOpen = false },
			actor:   userAActor,
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 1},
			wantErr: entity.ErrSignupClosed,
		},
		{
			name:    "missing event",
			actor:   userAActor,
			req:     ClaimSlotRequest{EventID: 99, SlotNumber: 1},
			wantErr: entity.ErrEventNotFound,
		},
		{
			name:    "missing host",
			mutate:  func(f *lineupFixture) { f.event().HostID = 404 },
			actor:   userAActor,
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 1},
			wantErr: entity.ErrHostNotFound,
		},
		{
			name:    "anonymous caller",
			actor:   entity.AnonymousIdentity("conn-1"),
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 1, SlotName: "Ghost"},
			wantErr: entity.ErrIdentityRequired,
		},
		{
			name:    "non-user without a name",
			actor:   entity.NonUserIdentity("abc", "10.0.0.1"),
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 1, SlotName: "   "},
			wantErr: entity.ErrNameRequired,
		},
		{
			name:    "slot number zero",
			actor:   userAActor,
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 0},
			wantErr: entity.ErrInvalidSlotNumber,
		},
		{
			name:    "slot number above limit",
			actor:   userAActor,
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 101},
			wantErr: entity.ErrInvalidSlotNumber,
		},
		{
			name:    "host assignment by non-host",
			actor:   userAActor,
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 1, SlotName: "Guest", IsHostAssignment: true},
			wantErr: entity.ErrNotHost,
		},
		{
			name:    "host assignment without a name",
			actor:   hostActor,
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 1, IsHostAssignment: true},
			wantErr: entity.ErrNameRequired,
		},
		{
			name: "slot number held by someone else",
			mutate: func(f *lineupFixture) {
				b := testUserB
				f.store.addSlot(entity.LineupSlot{EventID: testEventID, SlotNumber: 1, SlotName: "B", UserID: &b})
			},
			actor:   userAActor,
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 1},
			wantErr: entity.ErrSlotTaken,
		},
		{
			name:    "claiming on behalf of another user",
			actor:   userAActor,
			req:     ClaimSlotRequest{EventID: testEventID, SlotNumber: 1, UserID: func() *int64 { v := testUserB; return &v }()},
			wantErr: entity.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLineupFixture(t)
			if tt.mutate != nil {
				tt.mutate(f)
			}
			before := len(f.store.slotNumbers(testEventID))

			_, err := f.svc.ClaimSlot(context.Background(), tt.actor, &tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, f.store.slotNumbers(testEventID), before)
			assert.Empty(t, f.hub.frames)
			assert.Empty(t, f.notifier.all())
		})
	}
}

func TestClaimSlotHostBypassesClosedSignup(t *testing.T) {
	f := newLineupFixture(t)
	f.event().SignupOpen = false

	got, err := f.svc.ClaimSlot(context.Background(), hostActor, &ClaimSlotRequest{EventID: testEventID, SlotNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, testEventStart, got.StartTime)
	assert.Empty(t, f.notifier.all(), "host is not told about their own signup")
}

func TestHostAssignmentOverwritesSlot(t *testing.T) {
	f := newLineupFixture(t)
	ctx := context.Background()

	claimed, err := f.svc.ClaimSlot(ctx, userAActor, &ClaimSlotRequest{EventID: testEventID, SlotNumber: 2})
	require.NoError(t, err)

	assigned, err := f.svc.ClaimSlot(ctx, hostActor, &ClaimSlotRequest{
		EventID: testEventID, SlotNumber: 2, SlotName: "Guest Comic", IsHostAssignment: true,
	})
	require.NoError(t, err)

	assert.Equal(t, claimed.ID, assigned.ID)
	assert.Nil(t, assigned.UserID)
	assert.Equal(t, "Guest Comic", assigned.SlotName)
	assert.Equal(t, entity.OccupantHostAssigned, assigned.Occupant())
	assert.Contains(t, f.notifier.ensured, testHostID)

	removed := f.notifier.to(testUserA)
	require.Len(t, removed, 1)
	assert.Equal(t, entity.NotificationLineupRemoval, removed[0].Type)
	assert.Equal(t, entity.CategoryLineup, removed[0].Category)
	assert.Contains(t, removed[0].Message, "slot #2")
	assert.Contains(t, removed[0].Message, "by the host")

	// the former occupant may claim again since they no longer hold a slot
	_, err = f.svc.ClaimSlot(ctx, userAActor, &ClaimSlotRequest{EventID: testEventID, SlotNumber: 3})
	assert.NoError(t, err)
}

func TestHostAssignmentOverFreeOrAnonymousSlot(t *testing.T) {
	f := newLineupFixture(t)
	ctx := context.Background()
	tok := "walk-in"
	f.store.addSlot(entity.LineupSlot{EventID: testEventID, SlotNumber: 5, SlotName: "Kit", NonUserID: &tok})

	for _, number := range []int{5, 6} {
		_, err := f.svc.ClaimSlot(ctx, hostActor, &ClaimSlotRequest{
			EventID: testEventID, SlotNumber: number, SlotName: "Guest", IsHostAssignment: true,
		})
		require.NoError(t, err)
	}
	assert.Empty(t, f.notifier.all())
}

func TestClaimSlotTakesOverOpenSlot(t *testing.T) {
	f := newLineupFixture(t)
	open := f.store.addSlot(entity.LineupSlot{EventID: testEventID, SlotNumber: 4, SlotName: entity.OpenSlotName})

	got, err := f.svc.ClaimSlot(context.Background(), entity.NonUserIdentity("tok", ""), &ClaimSlotRequest{
		EventID: testEventID, SlotNumber: 4, SlotName: "Pat",
	})
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)
	assert.Nil(t, got.IPAddress)
	assert.Len(t, f.store.slotNumbers(testEventID), 1)
}

func TestReleaseSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("freed number can be claimed by someone else", func(t *testing.T) {
		f := newLineupFixture(t)
		slot, err := f.svc.ClaimSlot(ctx, userAActor, &ClaimSlotRequest{EventID: testEventID, SlotNumber: 2})
		require.NoError(t, err)

		freed, err := f.svc.ReleaseSlot(ctx, userAActor, slot.ID)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 19, 15, 0, 0, time.UTC), freed.StartTime)

		slots, err := f.svc.ListSlots(ctx, testEventID)
		require.NoError(t, err)
		assert.Empty(t, slots)

		_, err = f.svc.ClaimSlot(ctx, userBActor, &ClaimSlotRequest{EventID: testEventID, SlotNumber: 2})
		assert.NoError(t, err)
	})

	t.Run("self release notifies occupant and host", func(t *testing.T) {
		f := newLineupFixture(t)
		a := testUserA
		slot := f.store.addSlot(entity.LineupSlot{EventID: testEventID, SlotNumber: 2, SlotName: "A", UserID: &a})

		_, err := f.svc.ReleaseSlot(ctx, userAActor, slot.ID)
		require.NoError(t, err)

		toA := f.notifier.to(testUserA)
		require.Len(t, toA, 1)
		assert.Equal(t, entity.NotificationLineupUnsign, toA[0].Type)
		assert.NotContains(t, toA[0].Message, "by the host")

		toHost := f.notifier.to(testHostID)
		require.Len(t, toHost, 1)
		assert.Equal(t, entity.NotificationLineupUnsign, toHost[0].Type)
		assert.Equal(t, "A removed from slot #2 in Open Mic Night.", toHost[0].Message)

		frames := f.hub.ofType(entity.MessageLineupUpdate)
		require.Len(t, frames, 1)
		assert.Equal(t, entity.ActionDelete, frames[0].env.Action)
	})

	t.Run("host removal notifies occupant only", func(t *testing.T) {
		f := newLineupFixture(t)
		a := testUserA
		slot := f.store.addSlot(entity.LineupSlot{EventID: testEventID, SlotNumber: 2, SlotName: "A", UserID: &a})

		_, err := f.svc.ReleaseSlot(ctx, hostActor, slot.ID)
		require.NoError(t, err)

		toA := f.notifier.to(testUserA)
		require.Len(t, toA, 1)
		assert.Equal(t, entity.NotificationLineupRemoval, toA[0].Type)
		assert.Contains(t, toA[0].Message, "by the host")
		assert.Empty(t, f.notifier.to(testHostID))
	})

	t.Run("stranger cannot release", func(t *testing.T) {
		f := newLineupFixture(t)
		a := testUserA
		slot := f.store.addSlot(entity.LineupSlot{EventID: testEventID, SlotNumber: 2, SlotName: "A", UserID: &a})

		_, err := f.svc.ReleaseSlot(ctx, userBActor, slot.ID)
		assert.ErrorIs(t, err, entity.ErrForbidden)
		assert.Len(t, f.store.slotNumbers(testEventID), 1)
	})

	t.Run("notification failure does not block deletion", func(t *testing.T) {
		f := newLineupFixture(t)
		f.notifier.failWith = errStorage
		a := testUserA
		slot := f.store.addSlot(entity.LineupSlot{EventID: testEventID, SlotNumber: 2, SlotName: "A", UserID: &a})

		_, err := f.svc.ReleaseSlot(ctx, userAActor, slot.ID)
		require.NoError(t, err)
		assert.Empty(t, f.store.slotNumbers(testEventID))
		assert.Len(t, f.notifier.all(), 2, "both notifications are attempted")
	})

	t.Run("missing slot", func(t *testing.T) {
		f := newLineupFixture(t)
		_, err := f.svc.ReleaseSlot(ctx, hostActor, 12345)
		assert.ErrorIs(t, err, entity.ErrSlotNotFound)
	})
}

func TestListSlotsOrdered(t *testing.T) {
	f := newLineupFixture(t)
	for _, n := range []int{5, 1, 3} {
		f.store.addSlot(entity.LineupSlot{EventID: testEventID, SlotNumber: n, SlotName: entity.OpenSlotName})
	}
	f.store.addSlot(entity.LineupSlot{EventID: 8, SlotNumber: 2, SlotName: entity.OpenSlotName})

	slots, err := f.svc.ListSlots(context.Background(), testEventID)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for i, want := range []int{1, 3, 5} {
		assert.Equal(t, want, slots[i].SlotNumber)
		assert.Equal(t, SlotStartFor(f.event(), want), slots[i].StartTime)
	}
}

func TestReorderSlots(t *testing.T) {
	ctx := context.Background()
	a, b := testUserA, testUserB

	t.Run("swap notifies the moved performer only", func(t *testing.T) {
		f := newLineupFixture(t)
		f.store.addSlot(entity.LineupSlot{ID: 1, EventID: testEventID, SlotNumber: 1, SlotName: "A", UserID: &a})
		f.store.addSlot(entity.LineupSlot{ID: 2, EventID: testEventID, SlotNumber: 2, SlotName: entity.OpenSlotName})

		items := []entity.ReorderItem{{SlotID: 1, SlotNumber: 2}, {SlotID: 2, SlotNumber: 1}}
		require.NoError(t, f.svc.ReorderSlots(ctx, hostActor, items))

		assert.Equal(t, map[int64]int{1: 2, 2: 1}, f.store.slotNumbers(testEventID))

		sent := f.notifier.all()
		require.Len(t, sent, 1)
		assert.Equal(t, testUserA, sent[0].RecipientID)
		assert.Equal(t, entity.NotificationSlotTimeChange, sent[0].Type)
		assert.Contains(t, sent[0].Message, "from 19:00 to 19:15")

		frames := f.hub.ofType(entity.MessageLineupUpdate)
		require.Len(t, frames, 1)
		assert.Equal(t, entity.ActionReorder, frames[0].env.Action)
		assert.Equal(t, items, frames[0].env.Data)
	})

	t.Run("no notification when computed time is unchanged", func(t *testing.T) {
		f := newLineupFixture(t)
		f.event().SlotDuration = 0
		f.event().SetupDuration = 0
		f.store.addSlot(entity.LineupSlot{ID: 1, EventID: testEventID, SlotNumber: 1, SlotName: "A", UserID: &a})
		f.store.addSlot(entity.LineupSlot{ID: 2, EventID: testEventID, SlotNumber: 2, SlotName: "B", UserID: &b})

		require.NoError(t, f.svc.ReorderSlots(ctx, hostActor, []entity.ReorderItem{{SlotID: 1, SlotNumber: 2}, {SlotID: 2, SlotNumber: 1}}))

		assert.Equal(t, map[int64]int{1: 2, 2: 1}, f.store.slotNumbers(testEventID))
		assert.Empty(t, f.notifier.all())
	})

	t.Run("non-user performers are not notified", func(t *testing.T) {
		f := newLineupFixture(t)
		tok := "abc"
		f.store.addSlot(entity.LineupSlot{ID: 1, EventID: testEventID, SlotNumber: 1, SlotName: "N", NonUserID: &tok})

		require.NoError(t, f.svc.ReorderSlots(ctx, hostActor, []entity.ReorderItem{{SlotID: 1, SlotNumber: 4}}))
		assert.Empty(t, f.notifier.all())
	})

	t.Run("failure rolls back the whole batch", func(t *testing.T) {
		f := newLineupFixture(t)
		f.store.addSlot(entity.LineupSlot{ID: 1, EventID: testEventID, SlotNumber: 1, SlotName: "A", UserID: &a})
		f.store.addSlot(entity.LineupSlot{ID: 2, EventID: testEventID, SlotNumber: 2, SlotName: "B", UserID: &b})
		f.store.addSlot(entity.LineupSlot{ID: 3, EventID: testEventID, SlotNumber: 3, SlotName: entity.OpenSlotName})
		f.store.failSlotUpdate[3] = errStorage

		err := f.svc.ReorderSlots(ctx, hostActor, []entity.ReorderItem{
			{SlotID: 1, SlotNumber: 3}, {SlotID: 2, SlotNumber: 1}, {SlotID: 3, SlotNumber: 2},
		})
		require.ErrorIs(t, err, entity.ErrReorderFailed)
		assert.Equal(t, entity.ClassInternal, entity.ClassOf(err))

		assert.Equal(t, map[int64]int{1: 1, 2: 2, 3: 3}, f.store.slotNumbers(testEventID))
		assert.Empty(t, f.notifier.all())
		assert.Empty(t, f.hub.frames)
	})

	t.Run("unknown slot in batch rolls back", func(t *testing.T) {
		f := newLineupFixture(t)
		f.store.addSlot(entity.LineupSlot{ID: 1, EventID: testEventID, SlotNumber: 1, SlotName: "A", UserID: &a})

		err := f.svc.ReorderSlots(ctx, hostActor, []entity.ReorderItem{{SlotID: 1, SlotNumber: 2}, {SlotID: 77, SlotNumber: 1}})
		require.ErrorIs(t, err, entity.ErrReorderFailed)
		assert.Equal(t, map[int64]int{1: 1}, f.store.slotNumbers(testEventID))
	})

	t.Run("slot from another event rolls back", func(t *testing.T) {
		f := newLineupFixture(t)
		f.store.addSlot(entity.LineupSlot{ID: 1, EventID: testEventID, SlotNumber: 1, SlotName: "A", UserID: &a})
		f.store.addSlot(entity.LineupSlot{ID: 2, EventID: 8, SlotNumber: 1, SlotName: "X"})

		err := f.svc.ReorderSlots(ctx, hostActor, []entity.ReorderItem{{SlotID: 1, SlotNumber: 2}, {SlotID: 2, SlotNumber: 1}})
		require.ErrorIs(t, err, entity.ErrReorderFailed)
		assert.Equal(t, map[int64]int{1: 1}, f.store.slotNumbers(testEventID))
	})

	t.Run("only the host may reorder", func(t *testing.T) {
		f := newLineupFixture(t)
		f.store.addSlot(entity.LineupSlot{ID: 1, EventID: testEventID, SlotNumber: 1, SlotName: "A", UserID: &a})

		err := f.svc.ReorderSlots(ctx, userAActor, []entity.ReorderItem{{SlotID: 1, SlotNumber: 2}})
		assert.ErrorIs(t, err, entity.ErrNotHost)
		assert.Equal(t, map[int64]int{1: 1}, f.store.slotNumbers(testEventID))
	})

	t.Run("rows are locked in id order", func(t *testing.T) {
		f := newLineupFixture(t)
		f.store.addSlot(entity.LineupSlot{ID: 4, EventID: testEventID, SlotNumber: 1, SlotName: "A", UserID: &a})
		f.store.addSlot(entity.LineupSlot{ID: 9, EventID: testEventID, SlotNumber: 2, SlotName: "B", UserID: &b})
		f.store.addSlot(entity.LineupSlot{ID: 6, EventID: testEventID, SlotNumber: 3, SlotName: entity.OpenSlotName})

		items := []entity.ReorderItem{{SlotID: 9, SlotNumber: 1}, {SlotID: 6, SlotNumber: 2}, {SlotID: 4, SlotNumber: 3}}
		require.NoError(t, f.svc.ReorderSlots(ctx, hostActor, items))

		assert.Equal(t, []int64{4, 6, 9}, f.store.slotLocks)
		assert.Equal(t, map[int64]int{4: 3, 6: 2, 9: 1}, f.store.slotNumbers(testEventID))
	})

	t.Run("malformed batches never start a transaction", func(t *testing.T) {
		f := newLineupFixture(t)
		cases := []struct {
			items   []entity.ReorderItem
			wantErr error
		}{
			{nil, entity.ErrEmptyReorder},
			{[]entity.ReorderItem{{SlotID: 1, SlotNumber: 0}}, entity.ErrInvalidSlotNumber},
			{[]entity.ReorderItem{{SlotID: 1, SlotNumber: 101}}, entity.ErrInvalidSlotNumber},
			{[]entity.ReorderItem{{SlotID: 1, SlotNumber: 1}, {SlotID: 2, SlotNumber: 1}}, entity.ErrInvalidInput},
			{[]entity.ReorderItem{{SlotID: 1, SlotNumber: 1}, {SlotID: 1, SlotNumber: 2}}, entity.ErrInvalidInput},
		}
		for _, c := range cases {
			err := f.svc.ReorderSlots(ctx, hostActor, c.items)
			assert.ErrorIs(t, err, c.wantErr)
			assert.Equal(t, entity.ClassValidation, entity.ClassOf(err))
		}
		assert.Zero(t, f.store.txCount)
	})
}

func TestConsolidate(t *testing.T) {
	slots := []*entity.LineupSlot{
		{ID: 1, SlotNumber: 1, SlotName: entity.OpenSlotName},
		{ID: 2, SlotNumber: 3, SlotName: "Ann"},
		{ID: 3, SlotNumber: 2, SlotName: entity.OpenSlotName},
		{ID: 4, SlotNumber: 5, SlotName: "Bob"},
	}

	got := Consolidate(slots)

	assert.Equal(t, []entity.ReorderItem{
		{SlotID: 2, SlotNumber: 1},
		{SlotID: 4, SlotNumber: 2},
		{SlotID: 1, SlotNumber: 3},
		{SlotID: 3, SlotNumber: 4},
	}, got)
	assert.Equal(t, 1, slots[0].SlotNumber, "input is not mutated")
	assert.Empty(t, Consolidate(nil))
}

func TestConsolidatePreview(t *testing.T) {
	f := newLineupFixture(t)
	f.store.addSlot(entity.LineupSlot{ID: 1, EventID: testEventID, SlotNumber: 1, SlotName: entity.OpenSlotName})
	f.store.addSlot(entity.LineupSlot{ID: 2, EventID: testEventID, SlotNumber: 4, SlotName: "Guest"})

	_, err := f.svc.ConsolidatePreview(context.Background(), userAActor, testEventID)
	assert.ErrorIs(t, err, entity.ErrNotHost)

	items, err := f.svc.ConsolidatePreview(context.Background(), hostActor, testEventID)
	require.NoError(t, err)
	assert.Equal(t, []entity.ReorderItem{{SlotID: 2, SlotNumber: 1}, {SlotID: 1, SlotNumber: 2}}, items)
	assert.Equal(t, map[int64]int{1: 1, 2: 4}, f.store.slotNumbers(testEventID), "preview persists nothing")
}
