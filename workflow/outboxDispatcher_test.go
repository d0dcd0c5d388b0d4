package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxBackoff_DoublesPerAttempt(t *testing.T) {
	initial := 5 * time.Second

	assert.Equal(t, 5*time.Second, outboxBackoff(initial, 0))
	assert.Equal(t, 5*time.Second, outboxBackoff(initial, 1))
	assert.Equal(t, 10*time.Second, outboxBackoff(initial, 2))
	assert.Equal(t, 20*time.Second, outboxBackoff(initial, 3))
	assert.Equal(t, 80*time.Second, outboxBackoff(initial, 5))
}

func TestOutboxBackoff_CappedAtTenMinutes(t *testing.T) {
	assert.Equal(t, maxOutboxBackoff, outboxBackoff(5*time.Second, 8))
	assert.Equal(t, maxOutboxBackoff, outboxBackoff(5*time.Second, 20))
}

func TestNewOutboxDispatcher_Defaults(t *testing.T) {
	d := NewOutboxDispatcher(nil, config.GetLogger())

	assert.Equal(t, 50, d.BatchSize)
	assert.Equal(t, 20, d.MaxAttempts)
	assert.NotEmpty(t, d.DispatcherID)
	assert.NotNil(t, d.Publish)
}

func TestDispatchOnce_WithoutDatabaseIsNoop(t *testing.T) {
	published := 0
	d := NewOutboxDispatcher(nil, nil)
	d.Publish = func(ctx context.Context, msg config.EventMessage) (string, error) {
		published++
		return "id", nil
	}

	assert.Equal(t, 0, d.dispatchOnce(context.Background()))
	assert.Zero(t, published)
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	d := NewOutboxDispatcher(nil, nil)
	d.PollInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "dispatcher did not stop")
	}
}

func TestProcessEventMessage_RejectsIncompleteMessages(t *testing.T) {
	cases := map[string]config.EventMessage{
		"missing organization": {ID: 1, EntityType: "payment"},
		"missing entity type":  {ID: 1, OrganizationId: "org-a"},
		"missing id":           {OrganizationId: "org-a", EntityType: "payment"},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			err := ProcessEventMessage(context.Background(), nil, msg)
			assert.ErrorIs(t, err, ErrInvalidEventMessage)
		})
	}
}
