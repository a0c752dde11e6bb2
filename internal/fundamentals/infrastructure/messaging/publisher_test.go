package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/pkg/mq"
)

type sentMessage struct {
	topic string
	key   string
	value any
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentMessage
	err   error
	calls int
}

func (f *fakeSender) SendMessage(_ context.Context, topic, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{topic: topic, key: key, value: value})
	return nil
}

func completedEvent() domain.SimulationEvent {
	return domain.NewCompletedEvent(&domain.Report{ID: "r-1", Module: domain.ModuleCapital})
}

func TestKafkaPublisher_KeysByModule(t *testing.T) {
	sender := &fakeSender{}
	p := NewKafkaPublisher(sender, "insurance.simulation.completed", BreakerConfig{})

	require.NoError(t, p.Publish(context.Background(), completedEvent()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "insurance.simulation.completed", sender.sent[0].topic)
	assert.Equal(t, "capital", sender.sent[0].key)

	ev, ok := sender.sent[0].value.(domain.SimulationEvent)
	require.True(t, ok)
	assert.Equal(t, domain.EventSimulationCompleted, ev.Type)
}

func TestKafkaPublisher_OpensCircuit(t *testing.T) {
	sender := &fakeSender{err: errors.New("kafka: leader not available")}
	p := NewKafkaPublisher(sender, "events", BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.Error(t, p.Publish(ctx, completedEvent()))
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	err := p.Publish(ctx, completedEvent())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, sender.calls)
}

func TestMultiPublisher_JoinsErrors(t *testing.T) {
	ok := &fakeSender{}
	failing := &fakeSender{err: errors.New("boom")}
	m := MultiPublisher{
		LogPublisher{},
		NewKafkaPublisher(ok, "events", BreakerConfig{}),
		NewKafkaPublisher(failing, "events", BreakerConfig{}),
	}

	err := m.Publish(context.Background(), domain.NewRejectedEvent(domain.ModulePremium, errors.New("bad")))
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")
	assert.Len(t, ok.sent, 1)
}

func TestCompletedEvent_FitsKafkaMessageLimit(t *testing.T) {
	req := domain.DefaultLawOfLargeNumbersRequest()
	seed := uint64(3)
	req.Seed = &seed
	res, err := domain.SimulateLawOfLargeNumbers(req)
	require.NoError(t, err)

	report := &domain.Report{
		ID:             "r-lln",
		Module:         domain.ModuleLawOfLargeNumbers,
		Seed:           domain.ResultSeed(res),
		Result:         res,
		Interpretation: []string{"With 50,000 trials the observed rate is close to 5.00%"},
		CreatedAt:      time.Now(),
	}
	full, err := json.Marshal(report)
	require.NoError(t, err)
	require.Greater(t, len(full), mq.MaxMessageBytes)

	data, err := json.Marshal(domain.NewCompletedEvent(report))
	require.NoError(t, err)
	assert.Less(t, len(data), 4096)

	var ev domain.SimulationEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	require.NotNil(t, ev.Report)
	assert.Equal(t, "r-lln", ev.Report.ID)
	assert.Equal(t, seed, *ev.Report.Seed)
	assert.InDelta(t, res.LargeSample().Observed, ev.Report.Headline["observed"], 1e-12)
}
