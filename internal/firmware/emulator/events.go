package emulator

import (
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// firstEventHandle keeps event handles distinct from other handles.
const firstEventHandle types.Event = 0x3000

type event struct {
	id        xid.ID
	eventType uint32
	armed     bool
	periodic  bool
	deadline  uint64
	period    uint64
	signaled  bool
	// key marks the console's WaitForKey event.
	key bool
}

// eventManager owns events and the virtual clock, counted in 100ns ticks.
type eventManager struct {
	m      *Machine
	now    uint64
	next   types.Event
	events map[types.Event]*event
}

func newEventManager(m *Machine) *eventManager {
	return &eventManager{
		m:      m,
		next:   firstEventHandle,
		events: make(map[types.Event]*event),
	}
}

func (em *eventManager) create(eventType uint32, key bool) types.Event {
	handle := em.next
	em.next++
	ev := &event{id: xid.New(), eventType: eventType, key: key}
	em.events[handle] = ev
	em.m.log.WithFields(logrus.Fields{"event": ev.id.String(), "handle": handle, "type": eventType}).Trace("event created")
	return handle
}

// id returns the diagnostic identity of an event.
func (em *eventManager) id(handle types.Event) (xid.ID, bool) {
	ev, ok := em.events[handle]
	if !ok {
		return xid.NilID(), false
	}
	return ev.id, true
}

func (em *eventManager) setTimer(handle types.Event, delay types.TimerDelay, ticks uint64) types.Status {
	ev, ok := em.events[handle]
	if !ok || ev.eventType&types.EventTimer == 0 {
		return types.StatusInvalidParameter
	}

	switch delay {
	case types.TimerCancel:
		ev.armed = false
		ev.signaled = false
		em.m.stats.TimerCancels++
	case types.TimerRelative, types.TimerPeriodic:
		ev.armed = true
		ev.periodic = delay == types.TimerPeriodic
		ev.period = ticks
		ev.deadline = em.now + ticks
		ev.signaled = false
		em.m.stats.TimerArms++
	default:
		return types.StatusInvalidParameter
	}

	em.m.log.WithFields(logrus.Fields{"event": ev.id.String(), "delay": delay, "ticks": ticks}).Trace("timer set")
	return types.StatusSuccess
}

func (em *eventManager) close(handle types.Event) types.Status {
	ev, ok := em.events[handle]
	if !ok || ev.key {
		return types.StatusInvalidParameter
	}
	delete(em.events, handle)
	em.m.log.WithFields(logrus.Fields{"event": ev.id.String(), "armed": ev.armed}).Trace("event closed")
	return types.StatusSuccess
}

// wait returns the index of the first signaled event in list order, moving
// the clock forward to the next timer deadline or key arrival as needed.
func (em *eventManager) wait(handles []types.Event) (int, types.Status) {
	if len(handles) == 0 {
		return 0, types.StatusInvalidParameter
	}
	list := make([]*event, len(handles))
	for i, h := range handles {
		ev, ok := em.events[h]
		if !ok {
			return i, types.StatusInvalidParameter
		}
		list[i] = ev
	}

	for {
		for i, ev := range list {
			if em.signaled(ev) {
				if !ev.key {
					ev.signaled = false
				}
				em.m.log.WithFields(logrus.Fields{"event": ev.id.String(), "index": i, "tick": em.now}).Trace("wait satisfied")
				return i, types.StatusSuccess
			}
		}

		next, ok := em.nextWake(list)
		if !ok {
			if em.m.keyboard.injectAuto(em.now, list) {
				continue
			}
			em.m.log.WithFields(logrus.Fields{"events": eventIDs(list), "tick": em.now}).Warn("wait would block forever")
			return 0, types.StatusNotReady
		}
		em.advance(next)
	}
}

func eventIDs(list []*event) []string {
	ids := make([]string, len(list))
	for i, ev := range list {
		ids[i] = ev.id.String()
	}
	return ids
}

func (em *eventManager) signaled(ev *event) bool {
	if ev.key {
		return em.m.keyboard.pending(em.now)
	}
	return ev.signaled
}

// nextWake returns the earliest future tick at which an event in list can
// become signaled.
func (em *eventManager) nextWake(list []*event) (uint64, bool) {
	var next uint64
	found := false
	consider := func(t uint64) {
		if !found || t < next {
			next = t
			found = true
		}
	}
	for _, ev := range list {
		if ev.key {
			if t, ok := em.m.keyboard.nextArrival(em.now); ok {
				consider(t)
			}
			continue
		}
		if ev.armed {
			consider(ev.deadline)
		}
	}
	return next, found
}

// advance moves the clock to t and fires every timer due by then.
func (em *eventManager) advance(t uint64) {
	if t > em.now {
		em.now = t
	}
	for _, ev := range em.events {
		if !ev.armed || ev.deadline > em.now {
			continue
		}
		ev.signaled = true
		if ev.periodic && ev.period > 0 {
			for ev.deadline <= em.now {
				ev.deadline += ev.period
			}
		} else {
			ev.armed = false
		}
	}
}
