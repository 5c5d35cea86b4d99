package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/clock"
	"github.com/ds124wfegd/openmic-lineup/internal/entity"
)

var (
	testNow        = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	testEventStart = time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC)
	testClock      = clock.NewFixed(testNow)
	errStorage     = errors.New("storage unavailable")

	errNullEventTypes = errors.New(`null value in column "event_types" violates not-null constraint`)
)

// memStore backs every fake repository. Transactions run one at a time,
// standing in for row locks, and restore the slot and event tables when fn
// fails.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	events        map[int64]*entity.Event
	venues        map[int64]*entity.Venue
	users         map[int64]*entity.User
	slots         map[int64]*entity.LineupSlot
	notifications map[int64]*entity.Notification
	prefs         map[int64]*entity.NotificationPreference

	nextID int64

	failSlotUpdate   map[int64]error
	failNotifyCreate error
	failDetails      error
	txCount          int

	slotLocks  []int64
	eventLocks []int64

	// beforeEventUpdate runs at the start of every events Update, outside mu.
	beforeEventUpdate func()
}

func newMemStore() *memStore {
	return &memStore{
		events:         make(map[int64]*entity.Event),
		venues:         make(map[int64]*entity.Venue),
		users:          make(map[int64]*entity.User),
		slots:          make(map[int64]*entity.LineupSlot),
		notifications:  make(map[int64]*entity.Notification),
		prefs:          make(map[int64]*entity.NotificationPreference),
		nextID:         1000,
		failSlotUpdate: make(map[int64]error),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(id int64, name string, withPrefs bool) *entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &entity.User{ID: id, Name: name, Email: name + "@example.com"}
	m.users[id] = u
	if withPrefs {
		m.prefs[id] = entity.DefaultNotificationPreference(id)
	}
	return u
}

func (m *memStore) addVenue(id int64, name, tz string) *entity.Venue {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := &entity.Venue{ID: id, Name: name, Timezone: tz}
	m.venues[id] = v
	return v
}

// addEvent creates an active, open event at testEventStart with 10+5 minute spacing.
func (m *memStore) addEvent(id, venueID, hostID int64) *entity.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &entity.Event{
		ID:            id,
		VenueID:       venueID,
		HostID:        hostID,
		Name:          "Open Mic Night",
		StartTime:     testEventStart,
		EndTime:       testEventStart.Add(3 * time.Hour),
		SlotDuration:  10,
		SetupDuration: 5,
		Active:        true,
		SignupOpen:    true,
		Types:         []string{},
	}
	m.events[id] = e
	return e
}

func (m *memStore) addSlot(slot entity.LineupSlot) *entity.LineupSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot.ID == 0 {
		slot.ID = m.id()
	}
	m.slots[slot.ID] = &slot
	return &slot
}

func (m *memStore) slotNumbers(eventID int64) map[int64]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]int)
	for id, s := range m.slots {
		if s.EventID == eventID {
			out[id] = s.SlotNumber
		}
	}
	return out
}

func (m *memStore) notificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func cloneSlots(src map[int64]*entity.LineupSlot) map[int64]*entity.LineupSlot {
	dst := make(map[int64]*entity.LineupSlot, len(src))
	for id, s := range src {
		c := *s
		dst[id] = &c
	}
	return dst
}

type fakeTx struct{ s *memStore }

func cloneEvents(src map[int64]*entity.Event) map[int64]*entity.Event {
	dst := make(map[int64]*entity.Event, len(src))
	for id, e := range src {
		c := *e
		dst[id] = &c
	}
	return dst
}

func (t fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.Lock()
	t.s.txCount++
	slots, events := cloneSlots(t.s.slots), cloneEvents(t.s.events)
	t.s.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.s.mu.Lock()
		t.s.slots, t.s.events = slots, events
		t.s.mu.Unlock()
		return err
	}
	return nil
}

type fakeEvents struct{ s *memStore }

func (f fakeEvents) GetByID(_ context.Context, id int64) (*entity.Event, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.events[id]
	if !ok {
		return nil, entity.ErrEventNotFound
	}
	c := *e
	return &c, nil
}

func (f fakeEvents) GetForUpdate(ctx context.Context, id int64) (*entity.Event, error) {
	f.s.mu.Lock()
	f.s.eventLocks = append(f.s.eventLocks, id)
	f.s.mu.Unlock()
	return f.GetByID(ctx, id)
}

func (f fakeEvents) GetDetails(ctx context.Context, id int64) (*entity.EventDetails, error) {
	e, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d := &entity.EventDetails{Event: *e}
	if v, ok := f.s.venues[e.VenueID]; ok {
		d.VenueName, d.VenueTimezone = v.Name, v.Timezone
	}
	if u, ok := f.s.users[e.HostID]; ok {
		d.HostName = u.Name
	}
	return d, nil
}

func (f fakeEvents) Update(_ context.Context, event *entity.Event) error {
	if f.s.beforeEventUpdate != nil {
		f.s.beforeEventUpdate()
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.events[event.ID]; !ok {
		return entity.ErrEventNotFound
	}
	if event.Types == nil {
		return errNullEventTypes
	}
	c := *event
	f.s.events[event.ID] = &c
	return nil
}

type fakeVenues struct{ s *memStore }

func (f fakeVenues) GetByID(_ context.Context, id int64) (*entity.Venue, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v, ok := f.s.venues[id]
	if !ok {
		return nil, entity.ErrVenueNotFound
	}
	c := *v
	return &c, nil
}

type fakeUsers struct{ s *memStore }

func (f fakeUsers) GetByID(_ context.Context, id int64) (*entity.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

type fakeSlots struct{ s *memStore }

func (f fakeSlots) Create(_ context.Context, slot *entity.LineupSlot) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	var open *entity.LineupSlot
	for _, s := range f.s.slots {
		if s.EventID != slot.EventID {
			continue
		}
		if slot.UserID != nil && s.UserID != nil && *s.UserID == *slot.UserID {
			return entity.ErrDuplicateSlot
		}
		if slot.NonUserID != nil && s.NonUserID != nil && *s.NonUserID == *slot.NonUserID {
			return entity.ErrDuplicateSlot
		}
		if s.SlotNumber == slot.SlotNumber {
			if s.Occupant() != entity.OccupantOpen {
				return entity.ErrSlotTaken
			}
			open = s
		}
	}

	if open != nil {
		slot.ID = open.ID
	} else {
		slot.ID = f.s.id()
	}
	slot.CreatedAt, slot.UpdatedAt = testNow, testNow
	c := *slot
	f.s.slots[slot.ID] = &c
	return nil
}

func (f fakeSlots) UpsertHostAssignment(_ context.Context, slot *entity.LineupSlot) (*entity.LineupSlot, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	for _, s := range f.s.slots {
		if s.EventID == slot.EventID && s.SlotNumber == slot.SlotNumber {
			previous := *s
			s.SlotName = slot.SlotName
			s.UserID, s.NonUserID, s.IPAddress = nil, nil, nil
			s.CreatedBy = slot.CreatedBy
			*slot = *s
			return &previous, nil
		}
	}
	slot.ID = f.s.id()
	c := *slot
	f.s.slots[slot.ID] = &c
	return nil, nil
}

func (f fakeSlots) GetByID(_ context.Context, id int64) (*entity.LineupSlot, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	s, ok := f.s.slots[id]
	if !ok {
		return nil, entity.ErrSlotNotFound
	}
	c := *s
	return &c, nil
}

func (f fakeSlots) GetForUpdate(ctx context.Context, id int64) (*entity.LineupSlot, error) {
	f.s.mu.Lock()
	f.s.slotLocks = append(f.s.slotLocks, id)
	f.s.mu.Unlock()
	return f.GetByID(ctx, id)
}

func (f fakeSlots) find(match func(*entity.LineupSlot) bool) (*entity.LineupSlot, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, s := range f.s.slots {
		if match(s) {
			c := *s
			return &c, nil
		}
	}
	return nil, entity.ErrSlotNotFound
}

func (f fakeSlots) FindByUser(_ context.Context, eventID, userID int64) (*entity.LineupSlot, error) {
	return f.find(func(s *entity.LineupSlot) bool {
		return s.EventID == eventID && s.UserID != nil && *s.UserID == userID
	})
}

func (f fakeSlots) FindByNonUser(_ context.Context, eventID int64, nonUserID string) (*entity.LineupSlot, error) {
	return f.find(func(s *entity.LineupSlot) bool {
		return s.EventID == eventID && s.NonUserID != nil && *s.NonUserID == nonUserID
	})
}

func (f fakeSlots) ListByEvent(_ context.Context, eventID int64) ([]*entity.LineupSlot, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make([]*entity.LineupSlot, 0)
	for _, s := range f.s.slots {
		if s.EventID == eventID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	return out, nil
}

func (f fakeSlots) UpdateSlotNumber(_ context.Context, id int64, slotNumber int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.failSlotUpdate[id]; err != nil {
		return err
	}
	s, ok := f.s.slots[id]
	if !ok {
		return entity.ErrSlotNotFound
	}
	s.SlotNumber = slotNumber
	return nil
}

func (f fakeSlots) Delete(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.slots[id]; !ok {
		return entity.ErrSlotNotFound
	}
	delete(f.s.slots, id)
	return nil
}

type fakeNotifications struct{ s *memStore }

func (f fakeNotifications) Create(_ context.Context, n *entity.Notification) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failNotifyCreate != nil {
		return f.s.failNotifyCreate
	}
	n.ID = f.s.id()
	c := *n
	f.s.notifications[n.ID] = &c
	return nil
}

func (f fakeNotifications) GetDetails(_ context.Context, id int64) (*entity.NotificationDetails, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failDetails != nil {
		return nil, f.s.failDetails
	}
	n, ok := f.s.notifications[id]
	if !ok {
		return nil, entity.ErrNotificationNotFound
	}
	d := &entity.NotificationDetails{Notification: *n}
	if n.EventID != nil {
		if e, ok := f.s.events[*n.EventID]; ok {
			name := e.Name
			d.EventName = &name
		}
	}
	return d, nil
}

func (f fakeNotifications) ListByUser(_ context.Context, userID int64, limit int) ([]*entity.NotificationDetails, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make([]*entity.NotificationDetails, 0)
	for _, n := range f.s.notifications {
		if n.UserID == userID {
			out = append(out, &entity.NotificationDetails{Notification: *n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeNotifications) MarkRead(_ context.Context, userID, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n, ok := f.s.notifications[id]
	if !ok || n.UserID != userID {
		return entity.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (f fakeNotifications) DeleteByEvent(_ context.Context, eventID int64) ([]*entity.Notification, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	ids := make([]int64, 0)
	for id, n := range f.s.notifications {
		if n.EventID != nil && *n.EventID == eventID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*entity.Notification, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.s.notifications[id])
		delete(f.s.notifications, id)
	}
	return out, nil
}

func (f fakeNotifications) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var deleted int64
	for id, n := range f.s.notifications {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(f.s.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakePrefs struct{ s *memStore }

func (f fakePrefs) Get(_ context.Context, userID int64) (*entity.NotificationPreference, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.prefs[userID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (f fakePrefs) GetOrCreate(_ context.Context, userID int64) (*entity.NotificationPreference, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.prefs[userID]
	if !ok {
		p = entity.DefaultNotificationPreference(userID)
		f.s.prefs[userID] = p
	}
	c := *p
	return &c, nil
}

func (f fakePrefs) Upsert(_ context.Context, pref *entity.NotificationPreference) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := *pref
	f.s.prefs[pref.UserID] = &c
	return nil
}

type sentFrame struct {
	userID *int64
	env    entity.Envelope
}

// fakeHub records frames instead of sending them.
type fakeHub struct {
	mu     sync.Mutex
	frames []sentFrame
}

func (h *fakeHub) BroadcastToAll(env entity.Envelope) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, sentFrame{env: env})
	return 1
}

func (h *fakeHub) BroadcastToIdentity(userID int64, env entity.Envelope) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, sentFrame{userID: &userID, env: env})
	return 1
}

func (h *fakeHub) ofType(t entity.MessageType) []sentFrame {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]sentFrame, 0)
	for _, f := range h.frames {
		if f.env.Type == t {
			out = append(out, f)
		}
	}
	return out
}

// recordingNotifier captures requests; failWith makes every Notify fail.
type recordingNotifier struct {
	mu       sync.Mutex
	requests []NotificationRequest
	ensured  []int64
	failWith error
}

func (n *recordingNotifier) Notify(_ context.Context, req NotificationRequest) DispatchResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
	if n.failWith != nil {
		return DispatchResult{Status: DispatchFailed, Err: n.failWith}
	}
	return DispatchResult{Status: DispatchDelivered, Notification: &entity.Notification{UserID: req.RecipientID}}
}

func (n *recordingNotifier) EnsurePreferences(_ context.Context, userID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ensured = append(n.ensured, userID)
	return nil
}

func (n *recordingNotifier) GetPreferences(context.Context, int64) (*entity.NotificationPreference, error) {
	return nil, errors.New("not implemented")
}

func (n *recordingNotifier) UpdatePreferences(context.Context, int64, *UpdatePreferencesRequest) (*entity.NotificationPreference, error) {
	return nil, errors.New("not implemented")
}

func (n *recordingNotifier) ListNotifications(context.Context, int64, int) ([]*entity.NotificationDetails, error) {
	return nil, errors.New("not implemented")
}

func (n *recordingNotifier) MarkRead(context.Context, int64, int64) error {
	return errors.New("not implemented")
}

func (n *recordingNotifier) DeleteEventNotifications(context.Context, entity.Identity, int64) (int, error) {
	return 0, errors.New("not implemented")
}

func (n *recordingNotifier) PurgeRead(context.Context, time.Duration) (int64, error) {
	return 0, errors.New("not implemented")
}

func (n *recordingNotifier) to(userID int64) []NotificationRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationRequest, 0)
	for _, r := range n.requests {
		if r.RecipientID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (n *recordingNotifier) all() []NotificationRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NotificationRequest(nil), n.requests...)
}

type recordingActivity struct {
	mu   sync.Mutex
	envs []entity.Envelope
}

func (a *recordingActivity) Publish(_ context.Context, env entity.Envelope) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.envs = append(a.envs, env)
}

type recordingExternal struct {
	mu   sync.Mutex
	sent []*entity.Notification
}

func (e *recordingExternal) Enqueue(_ context.Context, n *entity.Notification) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, n)
	return nil
}
