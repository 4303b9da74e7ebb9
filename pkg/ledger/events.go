package ledger

import (
	"sort"

	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/ethereum/go-ethereum/event"
)

// record stamps and retains the events of a committed transaction and queues them for
// delivery. It is called with the transaction's pools still locked, so events of one pool
// are numbered in the order their swaps were applied.
func (l *Ledger) record(events []swap.SwapEvent) {
	l.eventsMu.Lock()
	defer l.eventsMu.Unlock()

	now := l.now()
	for i := range events {
		events[i].Sequence = l.nextSeq
		events[i].Timestamp = now
		l.nextSeq++
	}
	l.events = append(l.events, events...)
	if over := len(l.events) - l.history; over > 0 {
		l.events = l.events[over:]
	}
	l.outbox = append(l.outbox, events...)
}

// deliver sends queued events to subscribers in sequence order. It runs after the
// transaction has released its locks; a slow subscriber holds up callers of deliver but
// not other transactions.
func (l *Ledger) deliver() {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	for {
		l.eventsMu.Lock()
		batch := l.outbox
		l.outbox = nil
		l.eventsMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			l.feed.Send(ev)
		}
	}
}

// SubscribeSwapEvents delivers every swap event published after the call to ch.
// Delivery waits on every subscriber, so a subscriber that stops draining ch stalls the
// return of every later event-emitting transaction, though not its commit.
func (l *Ledger) SubscribeSwapEvents(ch chan<- swap.SwapEvent) event.Subscription {
	return l.feed.Subscribe(ch)
}

// Events returns up to limit retained events with a sequence number of at least from.
// A limit of zero or less returns all of them.
func (l *Ledger) Events(from uint64, limit int) []swap.SwapEvent {
	l.eventsMu.Lock()
	defer l.eventsMu.Unlock()

	start := sort.Search(len(l.events), func(i int) bool { return l.events[i].Sequence >= from })
	end := len(l.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]swap.SwapEvent, end-start)
	copy(out, l.events[start:end])
	return out
}

// LastSequence returns the sequence number of the most recently published event, or zero.
func (l *Ledger) LastSequence() uint64 {
	l.eventsMu.Lock()
	defer l.eventsMu.Unlock()
	return l.nextSeq - 1
}
