package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exitpal/exitpal/internal/model"
)

func TestDecodeJobs_ForwardsDecodedJobs(t *testing.T) {
	msgChan := make(chan []byte, 2)
	out := make(chan DispatchJob, 2)

	job := DispatchJob{
		ID:          uuid.New(),
		OwnerID:     "owner-1",
		Destination: "+15551234567",
		Content:     "time to leave",
		Channel:     model.ChannelSMS,
	}
	body, err := json.Marshal(job)
	require.NoError(t, err)

	msgChan <- []byte("not json")
	msgChan <- body
	close(msgChan)

	decodeJobs(context.Background(), msgChan, out)

	got := <-out
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.OwnerID, got.OwnerID)
	assert.Empty(t, out)
}

func TestDecodeJobs_CancelUnblocksFullOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgChan := make(chan []byte, 1)
	out := make(chan DispatchJob) // nobody reading, as after worker shutdown

	body, err := json.Marshal(DispatchJob{ID: uuid.New(), OwnerID: "owner-1"})
	require.NoError(t, err)
	msgChan <- body

	done := make(chan struct{})
	go func() {
		decodeJobs(ctx, msgChan, out)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("decode loop is stuck on a send with no consumer")
	}
}
