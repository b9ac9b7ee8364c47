package wsd

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wsdiscovery/wsdd/internal/eventsink"
)

// Scheduler implements WS-Discovery SOAP-over-UDP Appendix I retransmission:
// an initial send followed by a jittered, doubling backoff, repeated a
// fixed number of times depending on whether the destination is multicast
// or unicast. Every scheduled retransmit run is tracked in an
// errgroup.Group so a role's teardown can Wait() for in-flight Bye
// deliveries before its endpoint closes.
type Scheduler struct {
	group *errgroup.Group
	sink  eventsink.Sink
}

// NewScheduler creates a Scheduler. Each Enqueue call's retransmit
// goroutine is tied to the ctx passed to that call: cancelling it stops any
// future retransmits (the initial send and already-elapsed retransmits
// still complete).
func NewScheduler(sink eventsink.Sink) *Scheduler {
	return &Scheduler{group: &errgroup.Group{}, sink: sink}
}

// Enqueue sends payload immediately via send, then schedules the remaining
// repeats-1 retransmits with jittered, doubling backoff in a tracked
// goroutine. repeats should be MulticastUDPRepeat or UnicastUDPRepeat.
func (s *Scheduler) Enqueue(ctx context.Context, repeats int, payload []byte, send func([]byte) error) {
	if err := send(payload); err != nil {
		s.sink.Warnf("wsd: send failed: %v", err)
	}

	remaining := repeats - 1
	if remaining <= 0 {
		return
	}

	s.group.Go(func() error {
		delay := jitteredDelay()
		for i := 0; i < remaining; i++ {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}

			if err := send(payload); err != nil {
				s.sink.Warnf("wsd: retransmit failed: %v", err)
			}

			delay *= 2
			if delay > UDPUpperDelay {
				delay = UDPUpperDelay
			}
		}
		return nil
	})
}

// Wait blocks until every retransmit goroutine enqueued so far has
// finished. Callers tear a MEP down only after Wait returns, so a Bye's
// retransmits are guaranteed to have been sent.
func (s *Scheduler) Wait() error {
	return s.group.Wait()
}

func jitteredDelay() time.Duration {
	span := int64(UDPMaxDelay - UDPMinDelay)
	if span <= 0 {
		return UDPMinDelay
	}
	return UDPMinDelay + time.Duration(rand.Int63n(span+1))
}
