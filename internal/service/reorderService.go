package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"

	"github.com/sirupsen/logrus"
)

// ReorderRequest is the body of PUT /lineup_slots/reorder.
type ReorderRequest struct {
	Slots []entity.ReorderItem `json:"slots" binding:"required,min=1,dive"`
}

type slotTimeChange struct {
	userID     int64
	slotID     int64
	slotNumber int
	oldStart   time.Time
	newStart   time.Time
}

func (s *lineupService) validateReorder(items []entity.ReorderItem) error {
	if len(items) == 0 {
		return entity.ErrEmptyReorder
	}

	seenSlots := make(map[int64]struct{}, len(items))
	seenNumbers := make(map[int]struct{}, len(items))
	for _, item := range items {
		if !s.validSlotNumber(item.SlotNumber) {
			return entity.ErrInvalidSlotNumber
		}
		if _, dup := seenSlots[item.SlotID]; dup {
			return fmt.Errorf("%w: slot %d appears twice", entity.ErrInvalidInput, item.SlotID)
		}
		if _, dup := seenNumbers[item.SlotNumber]; dup {
			return fmt.Errorf("%w: slot number %d assigned twice", entity.ErrInvalidInput, item.SlotNumber)
		}
		seenSlots[item.SlotID] = struct{}{}
		seenNumbers[item.SlotNumber] = struct{}{}
	}
	return nil
}

func (s *lineupService) ReorderSlots(ctx context.Context, actor entity.Identity, items []entity.ReorderItem) error {
	if err := s.validateReorder(items); err != nil {
		return err
	}

	var (
		event   *entity.Event
		changes []slotTimeChange
	)

	// Rows are locked in id order so overlapping reorders queue up instead
	// of deadlocking.
	lockOrder := make([]int64, 0, len(items))
	for _, item := range items {
		lockOrder = append(lockOrder, item.SlotID)
	}
	sort.Slice(lockOrder, func(i, j int) bool { return lockOrder[i] < lockOrder[j] })

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		changes = changes[:0]

		locked := make(map[int64]*entity.LineupSlot, len(lockOrder))
		for _, id := range lockOrder {
			slot, err := s.slots.GetForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("slot %d: %w", id, err)
			}
			locked[id] = slot
		}

		var err error
		event, err = s.events.GetByID(ctx, locked[lockOrder[0]].EventID)
		if err != nil {
			return err
		}
		if !event.IsHostedBy(actor) {
			return entity.ErrNotHost
		}

		for _, item := range items {
			slot := locked[item.SlotID]
			if slot.EventID != event.ID {
				return fmt.Errorf("slot %d belongs to event %d, not %d", slot.ID, slot.EventID, event.ID)
			}

			if slot.UserID != nil && slot.SlotNumber != item.SlotNumber {
				oldStart := SlotStartFor(event, slot.SlotNumber)
				newStart := SlotStartFor(event, item.SlotNumber)
				if !oldStart.Equal(newStart) {
					changes = append(changes, slotTimeChange{
						userID:     *slot.UserID,
						slotID:     slot.ID,
						slotNumber: item.SlotNumber,
						oldStart:   oldStart,
						newStart:   newStart,
					})
				}
			}

			if err := s.slots.UpdateSlotNumber(ctx, slot.ID, item.SlotNumber); err != nil {
				return fmt.Errorf("slot %d: %w", item.SlotID, err)
			}
		}
		return nil
	})
	if err != nil {
		if entity.ClassOf(err) == entity.ClassAuthorization {
			return err
		}
		logrus.WithError(err).WithField("slots", len(items)).Error("Lineup reorder rolled back")
		return fmt.Errorf("%w: %v", entity.ErrReorderFailed, err)
	}

	logrus.WithFields(logrus.Fields{
		"event_id":     event.ID,
		"slots":        len(items),
		"time_changes": len(changes),
	}).Info("Lineup reordered")

	if len(changes) > 0 {
		venue := s.venueOf(ctx, event)
		for _, c := range changes {
			notifyAndLog(ctx, s.notifier, NotificationRequest{
				RecipientID: c.userID,
				Type:        entity.NotificationSlotTimeChange,
				Category:    entity.CategoryLineup,
				Message: fmt.Sprintf("Your performance time for %s has changed from %s to %s (slot #%d).",
					event.Name, s.config.Formatter.Format(c.oldStart, venue), s.config.Formatter.Format(c.newStart, venue), c.slotNumber),
				EventID: int64Ptr(event.ID),
				SlotID:  int64Ptr(c.slotID),
			})
		}
	}

	s.fanout.toAll(ctx, entity.LineupEnvelope(event.ID, entity.ActionReorder, items))
	return nil
}

// ConsolidatePreview is host only and persists nothing.
func (s *lineupService) ConsolidatePreview(ctx context.Context, actor entity.Identity, eventID int64) ([]entity.ReorderItem, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsHostedBy(actor) {
		return nil, entity.ErrNotHost
	}

	slots, err := s.slots.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return Consolidate(slots), nil
}

// Consolidate puts assigned slots before open ones, keeping relative order,
// and renumbers them from 1.
func Consolidate(slots []*entity.LineupSlot) []entity.ReorderItem {
	ordered := make([]*entity.LineupSlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SlotNumber < ordered[j].SlotNumber
	})

	assigned := make([]*entity.LineupSlot, 0, len(ordered))
	open := make([]*entity.LineupSlot, 0)
	for _, slot := range ordered {
		if slot.IsAssigned() {
			assigned = append(assigned, slot)
		} else {
			open = append(open, slot)
		}
	}

	items := make([]entity.ReorderItem, 0, len(ordered))
	for i, slot := range append(assigned, open...) {
		items = append(items, entity.ReorderItem{SlotID: slot.ID, SlotNumber: i + 1})
	}
	return items
}
