package scriptcore

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubscriptionToken is a globally unique, positive, monotonically issued
// identifier for one subscription.
type SubscriptionToken int64

type matchKind int

const (
	matchExact matchKind = iota
	matchPattern
	matchAny
)

// subscription is EventBus's internal record of one handler registration.
type subscription struct {
	token    SubscriptionToken
	kind     matchKind
	topic    string   // used when kind == matchExact
	segments []string // used when kind == matchPattern, pre-split on '.'
	handler  func(EventEnvelope)
	phase    EventPhase
	priority int32
	once     bool
	ownerID  string
}

// EventBus is a phased, prioritized, pattern-matched publish/subscribe
// hub with deferred delivery: emit enqueues, pump() delivers. Immediate
// synchronous delivery is intentionally not supported, so dispatch
// ordering is always well-defined and scripts never re-enter mid-dispatch.
type EventBus struct {
	cfg EventBusConfig
	log *slog.Logger
	m   *Metrics

	mu          sync.Mutex
	nextToken   SubscriptionToken
	subsByPhase map[EventPhase][]*subscription
	pending     []EventEnvelope
	inPump      bool
	deferredAdd []*subscription
	deferredDel []SubscriptionToken
	onceFired   map[SubscriptionToken]bool // tokens already invoked during the current Pump batch

	history []EventEnvelope
}

// NewEventBus constructs an empty EventBus.
func NewEventBus(cfg EventBusConfig, log *slog.Logger, m *Metrics) *EventBus {
	if log == nil {
		log = NewLogger()
	}
	return &EventBus{
		cfg:         cfg,
		log:         log,
		m:           m,
		subsByPhase: make(map[EventPhase][]*subscription),
	}
}

// On registers a legacy exact-topic, MAIN-phase, priority-0 subscription
// whose handler receives only the payload, not the full envelope.
func (b *EventBus) On(topic string, handler func(payload any)) SubscriptionToken {
	return b.subscribe(matchExact, topic, nil, PhaseMain, 0, false, "", func(env EventEnvelope) {
		handler(env.Payload)
	})
}

// OnEvent registers a subscription receiving the full envelope. pattern may
// be an exact topic, a glob pattern using "*"/"**" on "."-separated
// segments, or "" / "**" to match everything.
func (b *EventBus) OnEvent(pattern string, phase EventPhase, priority int32, handler func(EventEnvelope)) SubscriptionToken {
	return b.subscribeFor(pattern, phase, priority, false, "", handler)
}

// Once registers a subscription removed after its handler runs exactly
// once for any matching envelope.
func (b *EventBus) Once(pattern string, phase EventPhase, priority int32, handler func(EventEnvelope)) SubscriptionToken {
	return b.subscribeFor(pattern, phase, priority, true, "", handler)
}

// OnEventOwned is OnEvent with an ownerId attached, so OffOwner can mass
// remove it later (used by ScriptLifecycle for per-entity handlers).
func (b *EventBus) OnEventOwned(pattern string, phase EventPhase, priority int32, ownerID string, handler func(EventEnvelope)) SubscriptionToken {
	return b.subscribeFor(pattern, phase, priority, false, ownerID, handler)
}

func (b *EventBus) subscribeFor(pattern string, phase EventPhase, priority int32, once bool, ownerID string, handler func(EventEnvelope)) SubscriptionToken {
	if pattern == "" || pattern == "**" {
		return b.subscribe(matchAny, "", nil, phase, priority, once, ownerID, handler)
	}
	if strings.ContainsAny(pattern, "*") {
		return b.subscribe(matchPattern, pattern, strings.Split(pattern, "."), phase, priority, once, ownerID, handler)
	}
	return b.subscribe(matchExact, pattern, nil, phase, priority, once, ownerID, handler)
}

func (b *EventBus) subscribe(kind matchKind, topic string, segments []string, phase EventPhase, priority int32, once bool, ownerID string, handler func(EventEnvelope)) SubscriptionToken {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextToken++
	sub := &subscription{
		token:    b.nextToken,
		kind:     kind,
		topic:    topic,
		segments: segments,
		handler:  handler,
		phase:    phase,
		priority: priority,
		once:     once,
		ownerID:  ownerID,
	}

	if b.inPump {
		b.deferredAdd = append(b.deferredAdd, sub)
	} else {
		b.insert(sub)
	}
	return sub.token
}

// insert adds sub into its phase bucket, keeping the bucket sorted by
// priority descending, then token ascending (subscription order) for ties.
// Must be called with b.mu held.
func (b *EventBus) insert(sub *subscription) {
	list := b.subsByPhase[sub.phase]
	list = append(list, sub)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].token < list[j].token
	})
	b.subsByPhase[sub.phase] = list
}

// Off removes a subscription by token. Outside a Pump it is idempotent:
// removing an already-removed or unknown token is a no-op and returns
// false. Called while a Pump is in progress (from a handler), the removal
// is deferred until the pump ends and Off returns true without looking the
// token up.
func (b *EventBus) Off(token SubscriptionToken) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(token, "")
}

// OffTopic removes a subscription by token, additionally validating that
// its registered topic/pattern matches topic. While a Pump is in progress
// the topic is not checked; the removal is deferred as for Off.
func (b *EventBus) OffTopic(topic string, token SubscriptionToken) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(token, topic)
}

func (b *EventBus) removeLocked(token SubscriptionToken, wantTopic string) bool {
	if b.inPump {
		b.deferredDel = append(b.deferredDel, token)
		return true
	}
	for phase, list := range b.subsByPhase {
		for i, sub := range list {
			if sub.token != token {
				continue
			}
			if wantTopic != "" && sub.topic != wantTopic {
				return false
			}
			b.subsByPhase[phase] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// OffOwner removes every subscription carrying the given ownerId. Used by
// ScriptLifecycle when an entity is destroyed so captured handlers are
// reaped and can never fire again.
func (b *EventBus) OffOwner(ownerID string) int {
	if ownerID == "" {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, list := range b.subsByPhase {
		for _, sub := range list {
			if sub.ownerID != ownerID {
				continue
			}
			n++
			if b.inPump {
				b.deferredDel = append(b.deferredDel, sub.token)
			}
		}
	}

	if !b.inPump {
		for phase, list := range b.subsByPhase {
			kept := list[:0:0]
			for _, sub := range list {
				if sub.ownerID != ownerID {
					kept = append(kept, sub)
				}
			}
			b.subsByPhase[phase] = kept
		}
	}
	return n
}

// Emit enqueues an envelope for delivery on the next pump(). It never
// delivers synchronously.
func (b *EventBus) Emit(topic string, payload any) {
	b.EmitEvent(EventEnvelope{Topic: topic, Payload: payload})
}

// EmitEvent enqueues a fully-formed envelope. Timestamp and CorrelationID
// are filled in if zero/empty.
func (b *EventBus) EmitEvent(env EventEnvelope) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now()
	}
	if env.Meta.CorrelationID == "" {
		env.Meta.CorrelationID = uuid.NewString()
	}

	b.mu.Lock()
	b.pending = append(b.pending, env)
	b.mu.Unlock()
}

// Pump delivers every envelope enqueued since the last pump, in FIFO
// emit-order, phase PRE then MAIN then POST, descending priority within a
// phase. Envelopes emitted by a handler during pump are queued for the
// next pump — there is no recursion within one pump call.
func (b *EventBus) Pump() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.inPump = true
	b.onceFired = make(map[SubscriptionToken]bool)
	b.mu.Unlock()

	for _, env := range batch {
		b.dispatchOne(env)
	}

	b.mu.Lock()
	b.inPump = false
	for _, sub := range b.deferredAdd {
		b.insert(sub)
	}
	b.deferredAdd = nil
	for _, token := range b.deferredDel {
		b.removeLocked(token, "")
	}
	b.deferredDel = nil
	b.onceFired = nil

	if b.cfg.HistorySize > 0 {
		b.history = append(b.history, batch...)
		if over := len(b.history) - b.cfg.HistorySize; over > 0 {
			b.history = b.history[over:]
		}
	}
	b.mu.Unlock()
}

func (b *EventBus) dispatchOne(env EventEnvelope) {
	for _, phase := range [...]EventPhase{PhasePre, PhaseMain, PhasePost} {
		b.dispatchPhase(phase, env)
		if b.m != nil {
			b.m.recordDispatch(phase)
		}
	}
}

func (b *EventBus) dispatchPhase(phase EventPhase, env EventEnvelope) {
	b.mu.Lock()
	// Snapshot the phase's subscriber list so concurrent Off/OffOwner calls
	// made from within a handler don't mutate the slice mid-iteration.
	list := append([]*subscription(nil), b.subsByPhase[phase]...)
	b.mu.Unlock()

	var onceTokens []SubscriptionToken
	for _, sub := range list {
		if !matches(sub, env.Topic) {
			continue
		}
		if sub.once {
			b.mu.Lock()
			alreadyFired := b.onceFired[sub.token]
			if !alreadyFired {
				b.onceFired[sub.token] = true
			}
			b.mu.Unlock()
			if alreadyFired {
				continue
			}
		}
		b.invokeSafely(sub, env)
		if sub.once {
			onceTokens = append(onceTokens, sub.token)
		}
	}
	for _, token := range onceTokens {
		b.mu.Lock()
		b.removeLocked(token, "")
		b.mu.Unlock()
	}
}

func (b *EventBus) invokeSafely(sub *subscription, env EventEnvelope) {
	defer func() {
		if p := recover(); p != nil {
			if b.m != nil {
				b.m.recordScriptCallError("event")
			}
			b.log.Error("event handler panicked", "topic", env.Topic, "phase", sub.phase.String(), "error", errFromPanic(p))
		}
	}()
	sub.handler(env)
}

func matches(sub *subscription, topic string) bool {
	switch sub.kind {
	case matchAny:
		return true
	case matchExact:
		return sub.topic == topic
	case matchPattern:
		return matchSegments(sub.segments, strings.Split(topic, "."))
	default:
		return false
	}
}

// matchSegments compares glob pattern segments against topic segments.
// "*" matches exactly one segment; "**" matches zero or more segments.
func matchSegments(pattern, topic []string) bool {
	if len(pattern) == 0 {
		return len(topic) == 0
	}
	head := pattern[0]
	if head == "**" {
		if matchSegments(pattern[1:], topic) {
			return true
		}
		if len(topic) == 0 {
			return false
		}
		return matchSegments(pattern, topic[1:])
	}
	if len(topic) == 0 {
		return false
	}
	if head != "*" && head != topic[0] {
		return false
	}
	return matchSegments(pattern[1:], topic[1:])
}

// GetHistory returns up to limit of the most recently dispatched
// envelopes, oldest first. Returns nil if history capture is disabled
// (EventBusConfig.HistorySize == 0).
func (b *EventBus) GetHistory(limit int) []EventEnvelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.history) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	start := len(b.history) - limit
	out := make([]EventEnvelope, limit)
	copy(out, b.history[start:])
	return out
}
