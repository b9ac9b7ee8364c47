package wsd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsdiscovery/wsdd/internal/eventsink"
)

type nopSink struct{}

func (nopSink) Debugf(string, ...interface{}) {}
func (nopSink) Infof(string, ...interface{})  {}
func (nopSink) Warnf(string, ...interface{})  {}
func (nopSink) Errorf(string, ...interface{}) {}

var _ eventsink.Sink = nopSink{}

func TestSchedulerMulticastRepeatCount(t *testing.T) {
	s := NewScheduler(nopSink{})

	var mu sync.Mutex
	var sends int
	var times []time.Time

	s.Enqueue(context.Background(), MulticastUDPRepeat, []byte("hello"), func([]byte) error {
		mu.Lock()
		defer mu.Unlock()
		sends++
		times = append(times, time.Now())
		return nil
	})
	require.NoError(t, s.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, MulticastUDPRepeat, sends)

	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), UDPMinDelay)
		assert.LessOrEqual(t, times[i].Sub(times[i-1]), UDPUpperDelay+50*time.Millisecond)
	}
}

func TestSchedulerUnicastRepeatCount(t *testing.T) {
	s := NewScheduler(nopSink{})

	var mu sync.Mutex
	sends := 0

	s.Enqueue(context.Background(), UnicastUDPRepeat, []byte("hi"), func([]byte) error {
		mu.Lock()
		sends++
		mu.Unlock()
		return nil
	})
	require.NoError(t, s.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, UnicastUDPRepeat, sends)
}

func TestSchedulerSendFailureIsNonFatal(t *testing.T) {
	s := NewScheduler(nopSink{})

	var mu sync.Mutex
	sends := 0

	s.Enqueue(context.Background(), MulticastUDPRepeat, []byte("x"), func([]byte) error {
		mu.Lock()
		sends++
		mu.Unlock()
		return assert.AnError
	})
	require.NoError(t, s.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, MulticastUDPRepeat, sends, "scheduling continues past send errors")
}

func TestJitteredDelayWithinBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitteredDelay()
		assert.GreaterOrEqual(t, d, UDPMinDelay)
		assert.LessOrEqual(t, d, UDPMaxDelay)
	}
}
