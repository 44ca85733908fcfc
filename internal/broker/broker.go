package broker

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Topics published by the core
const (
	TopicSectionConflict     = "section.conflict"
	TopicSectionDiff         = "section.diff"
	TopicProjectLifecycle    = "project.lifecycle"
	TopicQualityGateProgress = "quality-gate.progress"
	TopicQualityGateSummary  = "quality-gate.summary"
)

// Envelope is one immutable, sequenced unit on the broker's log.
// The ID doubles as the replay token clients pass on reconnect.
type Envelope struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	ResourceID  string    `json:"resourceId"`
	WorkspaceID string    `json:"workspaceId"`
	Sequence    uint64    `json:"sequence"`
	Payload     any       `json:"payload"`
	Timestamp   time.Time `json:"timestamp"`
}

// Filter selects which envelopes a subscription receives.
// WorkspaceID is mandatory; Topic and ResourceID narrow further when set.
type Filter struct {
	WorkspaceID string
	Topic       string
	ResourceID  string
}

func (f Filter) matches(e Envelope) bool {
	if e.WorkspaceID != f.WorkspaceID {
		return false
	}
	if f.Topic != "" && e.Topic != f.Topic {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	return true
}

// Subscription is one live consumer registration. The channel is closed by
// the broker on shutdown or when the consumer falls too far behind; the
// consumer reconnects with its last received ID and replay covers the rest.
type Subscription struct {
	C <-chan Envelope

	// ReplayGap is set when the requested resume point has already been
	// evicted from the retention window. The subscriber got every envelope
	// still buffered, but must re-fetch current state to be sure.
	ReplayGap bool

	id     uint64
	broker *Broker
}

// Close releases the registration without affecting other subscribers.
func (s *Subscription) Close() {
	s.broker.unsubscribe(s.id)
}

type subscriber struct {
	filter Filter
	ch     chan Envelope
}

// resourceLog is the bounded per-resource buffer of recent envelopes,
// ordered by sequence.
type resourceLog struct {
	entries []Envelope
	// highest sequence ever evicted from this log, for gap detection
	evictedThrough uint64
}

func (rl *resourceLog) append(e Envelope, capacity int) error {
	if n := len(rl.entries); n > 0 && e.Sequence <= rl.entries[n-1].Sequence {
		return fmt.Errorf("sequence regression: %d after %d", e.Sequence, rl.entries[n-1].Sequence)
	}
	rl.entries = append(rl.entries, e)
	if len(rl.entries) > capacity {
		rl.evictedThrough = rl.entries[0].Sequence
		rl.entries = rl.entries[1:]
	}
	return nil
}

func (rl *resourceLog) dropOlderThan(cutoff time.Time) {
	i := 0
	for i < len(rl.entries) && rl.entries[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		rl.evictedThrough = rl.entries[i-1].Sequence
		rl.entries = rl.entries[i:]
	}
}

// Broker is an ordered, topic+resource-scoped, replayable publish/subscribe
// log. Publishes are appended under a single mutex so the sequence counter is
// strictly increasing; replay snapshots are taken under the same mutex so the
// replay/live boundary never duplicates or drops an envelope.
type Broker struct {
	mu       sync.Mutex
	seq      uint64
	logs     map[string]*resourceLog
	subs     map[uint64]*subscriber
	nextSub  uint64
	closed   bool
	capacity int
	queue    int
	window   time.Duration

	stopSweep chan struct{}
	sweepDone chan struct{}
	log       zerolog.Logger
}

// New creates a broker and starts its retention sweeper.
// capacity bounds each resource log, queue sizes subscriber channels, and
// window is how long envelopes stay replayable.
func New(capacity, queue int, window time.Duration, log zerolog.Logger) *Broker {
	b := &Broker{
		logs:      make(map[string]*resourceLog),
		subs:      make(map[uint64]*subscriber),
		capacity:  capacity,
		queue:     queue,
		window:    window,
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
		log:       log,
	}
	go b.sweep()
	return b
}

// Publish appends an envelope to the log and fans it out to every matching
// live subscriber. Fire-and-forget for the publisher: a slow subscriber is
// disconnected rather than blocking the append path.
func (b *Broker) Publish(topic, resourceID, workspaceID string, payload any) (Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Envelope{}, errors.New("broker is closed")
	}

	b.seq++
	env := Envelope{
		ID:          strconv.FormatUint(b.seq, 10),
		Topic:       topic,
		ResourceID:  resourceID,
		WorkspaceID: workspaceID,
		Sequence:    b.seq,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}

	rl := b.logs[resourceID]
	if rl == nil {
		rl = &resourceLog{}
		b.logs[resourceID] = rl
	}
	if err := rl.append(env, b.capacity); err != nil {
		// sequence regression is a defect, never deliver out of order
		b.log.Error().Err(err).Str("topic", topic).Str("resource", resourceID).Msg("dropping envelope")
		return Envelope{}, err
	}

	for id, sub := range b.subs {
		if !sub.filter.matches(env) {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			// consumer fell behind its queue; disconnect it so the
			// transport reconnects with a replay token
			b.log.Warn().Uint64("subscriber", id).Msg("subscriber queue full, disconnecting")
			close(sub.ch)
			delete(b.subs, id)
		}
	}

	return env, nil
}

// Subscribe registers a consumer. When lastEventID is set, every buffered
// envelope with a higher sequence that matches the filter is queued first,
// in sequence order, then delivery transitions to live with no gap and no
// duplication at the boundary.
func (b *Broker) Subscribe(filter Filter, lastEventID string) (*Subscription, error) {
	if filter.WorkspaceID == "" {
		return nil, errors.New("workspace id is required")
	}

	var last uint64
	resume := false
	if lastEventID != "" {
		v, err := strconv.ParseUint(lastEventID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid last event id %q", lastEventID)
		}
		last = v
		resume = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("broker is closed")
	}

	var replay []Envelope
	gap := false
	if resume {
		for resourceID, rl := range b.logs {
			if filter.ResourceID != "" && resourceID != filter.ResourceID {
				continue
			}
			if rl.evictedThrough > last {
				gap = true
			}
			for _, e := range rl.entries {
				if e.Sequence > last && filter.matches(e) {
					replay = append(replay, e)
				}
			}
		}
		sort.Slice(replay, func(i, j int) bool { return replay[i].Sequence < replay[j].Sequence })
	}

	ch := make(chan Envelope, len(replay)+b.queue)
	for _, e := range replay {
		ch <- e
	}

	b.nextSub++
	id := b.nextSub
	b.subs[id] = &subscriber{filter: filter, ch: ch}

	return &Subscription{C: ch, ReplayGap: gap, id: id, broker: b}, nil
}

func (b *Broker) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// SubscriberCount returns the number of live registrations
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) sweep() {
	defer close(b.sweepDone)

	interval := b.window / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-b.window)
			b.mu.Lock()
			for _, rl := range b.logs {
				rl.dropOlderThan(cutoff)
			}
			b.mu.Unlock()
		case <-b.stopSweep:
			return
		}
	}
}

// Close stops the sweeper and disconnects every subscriber.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	close(b.stopSweep)
	<-b.sweepDone
}
