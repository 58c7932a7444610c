package scheduling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ResourceKind tags the kind of a bookable resource.
type ResourceKind string

const (
	ResourceKindTutor ResourceKind = "TUTOR"
	ResourceKindRoom  ResourceKind = "ROOM"
)

// ResourceKey identifies one bookable resource (a tutor or a room).
type ResourceKey struct {
	Kind ResourceKind `json:"kind"`
	ID   int64        `json:"id"`
}

// less defines the canonical resource ordering used for lock acquisition:
// tutors before rooms, then ascending numeric id. Every caller that locks more
// than one resource goes through this ordering, which rules out lock-order
// deadlocks between concurrent bookings.
func (k ResourceKey) less(other ResourceKey) bool {
	if k.Kind != other.Kind {
		return k.Kind == ResourceKindTutor
	}
	return k.ID < other.ID
}

// ErrLockTimeout is returned when a resource lock cannot be acquired within
// the configured wait. Callers surface it as a retryable busy condition.
var ErrLockTimeout = errors.New("timed out waiting for resource lock")

// Reservation is one committed interval on a resource's timeline, tied to the
// meeting that owns it.
type Reservation struct {
	Interval  Interval
	MeetingID string
}

// timeline holds the committed reservations of a single resource, sorted by
// start time. The channel doubles as a mutex that supports bounded,
// context-aware acquisition.
type timeline struct {
	lock         chan struct{}
	reservations []Reservation
}

func newTimeline() *timeline {
	return &timeline{lock: make(chan struct{}, 1)}
}

// conflictWith returns the reservation overlapping ival, if any. Reservations
// owned by excludeMeetingID are ignored so a reschedule can reserve its new
// window before releasing the old one. Because reservations on one timeline
// never overlap each other, only the neighbors of the insertion point can
// clash with the candidate.
func (t *timeline) conflictWith(ival Interval, excludeMeetingID string) *Reservation {
	idx := sort.Search(len(t.reservations), func(i int) bool {
		return !t.reservations[i].Interval.Start.Before(ival.Start)
	})
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(t.reservations) {
			continue
		}
		r := t.reservations[i]
		if r.MeetingID == excludeMeetingID {
			// The excluded meeting's own slot; its neighbor may still clash.
			if i == idx-1 && i > 0 {
				if prev := t.reservations[i-1]; prev.MeetingID != excludeMeetingID && prev.Interval.Overlaps(ival) {
					return &prev
				}
			}
			if i == idx && i+1 < len(t.reservations) {
				if next := t.reservations[i+1]; next.MeetingID != excludeMeetingID && next.Interval.Overlaps(ival) {
					return &next
				}
			}
			continue
		}
		if r.Interval.Overlaps(ival) {
			return &r
		}
	}
	return nil
}

func (t *timeline) insert(res Reservation) {
	idx := sort.Search(len(t.reservations), func(i int) bool {
		return !t.reservations[i].Interval.Start.Before(res.Interval.Start)
	})
	t.reservations = append(t.reservations, Reservation{})
	copy(t.reservations[idx+1:], t.reservations[idx:])
	t.reservations[idx] = res
}

func (t *timeline) removeMeeting(meetingID string) int {
	kept := t.reservations[:0]
	removed := 0
	for _, r := range t.reservations {
		if r.MeetingID == meetingID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	t.reservations = kept
	return removed
}

// Index is the availability index: the committed booking intervals of every
// resource, guarded by per-resource locks so bookings touching disjoint
// resources proceed fully in parallel.
type Index struct {
	mu        sync.Mutex
	timelines map[ResourceKey]*timeline
	lockWait  time.Duration
	logger    zerolog.Logger
}

// NewIndex creates an empty availability index. lockWait bounds how long a
// booking waits for a contended resource before failing as busy.
func NewIndex(lockWait time.Duration, logger zerolog.Logger) *Index {
	return &Index{
		timelines: make(map[ResourceKey]*timeline),
		lockWait:  lockWait,
		logger:    logger,
	}
}

func (x *Index) timeline(key ResourceKey) *timeline {
	x.mu.Lock()
	defer x.mu.Unlock()
	t, ok := x.timelines[key]
	if !ok {
		t = newTimeline()
		x.timelines[key] = t
	}
	return t
}

// Claim holds the locks of one booking attempt across a set of resources.
// It must be released exactly once.
type Claim struct {
	index *Index
	keys  []ResourceKey
	held  []*timeline
}

// Acquire locks the given resources in canonical order, waiting at most the
// configured lockWait per resource. On timeout every lock already taken is
// released and ErrLockTimeout is returned.
func (x *Index) Acquire(ctx context.Context, keys ...ResourceKey) (*Claim, error) {
	ordered := make([]ResourceKey, len(keys))
	copy(ordered, keys)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].less(ordered[j]) })

	claim := &Claim{index: x, keys: ordered}
	for _, key := range ordered {
		t := x.timeline(key)
		timer := time.NewTimer(x.lockWait)
		select {
		case t.lock <- struct{}{}:
			timer.Stop()
			claim.held = append(claim.held, t)
		case <-timer.C:
			claim.Release()
			x.logger.Warn().
				Str("kind", string(key.Kind)).
				Int64("resourceID", key.ID).
				Dur("lockWait", x.lockWait).
				Msg("Resource lock acquisition timed out")
			return nil, ErrLockTimeout
		case <-ctx.Done():
			timer.Stop()
			claim.Release()
			return nil, ctx.Err()
		}
	}
	return claim, nil
}

// Release unlocks every resource held by the claim. Safe to call once only.
func (c *Claim) Release() {
	for _, t := range c.held {
		<-t.lock
	}
	c.held = nil
}

// Conflict returns the reservation clashing with ival on the given resource,
// or nil when the window is free. Must be called while the claim holds the
// resource's lock. Reservations owned by excludeMeetingID are ignored.
func (c *Claim) Conflict(key ResourceKey, ival Interval, excludeMeetingID string) *Reservation {
	return c.index.timeline(key).conflictWith(ival, excludeMeetingID)
}

// Reserve commits a reservation on the resource's timeline. The caller must
// have verified the window is free; Reserve does not re-check.
func (c *Claim) Reserve(key ResourceKey, res Reservation) {
	c.index.timeline(key).insert(res)
}

// ReleaseMeeting removes every reservation owned by meetingID from the given
// resources, taking each resource's lock briefly. Used for cancellation and
// for rolling back a reservation whose meeting failed to persist.
func (x *Index) ReleaseMeeting(ctx context.Context, meetingID string, keys ...ResourceKey) error {
	claim, err := x.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer claim.Release()
	for _, key := range keys {
		x.timeline(key).removeMeeting(meetingID)
	}
	return nil
}

// Overlaps reports whether any committed reservation on the resource clashes
// with ival. Lock-free read meant for advisory queries; bookings go through
// Acquire/Conflict/Reserve instead.
func (x *Index) Overlaps(key ResourceKey, ival Interval) bool {
	t := x.timeline(key)
	t.lock <- struct{}{}
	defer func() { <-t.lock }()
	return t.conflictWith(ival, "") != nil
}

// Restore loads committed reservations in bulk, reconstructing the index from
// persisted meetings at startup. Not safe for use after serving has begun.
func (x *Index) Restore(entries map[ResourceKey][]Reservation) {
	for key, list := range entries {
		t := x.timeline(key)
		for _, res := range list {
			t.insert(res)
		}
	}
}
