package consumer

import (
	"context"
	"errors"
	"io"
	"testing"

	dm "github.com/andrej220/netsurvey/pkg/shared-models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	pending   []kafka.Message
	committed []int64
	commitErr error
	closed    bool
}

func (r *mockReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.pending) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.pending[0]
	r.pending = r.pending[1:]
	return m, nil
}

func (r *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *mockReader) Close() error {
	r.closed = true
	return nil
}

func TestReadDecodesAndCommits(t *testing.T) {
	r := &mockReader{pending: []kafka.Message{
		{Offset: 7, Key: []byte("10.0.0.1"), Value: []byte(`{"address":"10.0.0.1","vendor":"Cisco","cleaned":"SW1"}`)},
	}}
	c := newConsumer[dm.DeviceMessage](r)

	msg, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", msg.Address)
	assert.Equal(t, "Cisco", msg.Vendor)
	assert.Equal(t, "SW1", msg.Cleaned)
	assert.Equal(t, []int64{7}, r.committed)

	_, err = c.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, c.Close())
	assert.True(t, r.closed)
}

func TestReadLeavesUndecodableUncommitted(t *testing.T) {
	r := &mockReader{pending: []kafka.Message{{Offset: 3, Value: []byte("not json")}}}
	c := newConsumer[dm.DeviceMessage](r)

	_, err := c.Read(context.Background())
	assert.ErrorContains(t, err, "offset 3")
	assert.Empty(t, r.committed)
}

func TestReadCommitFailure(t *testing.T) {
	r := &mockReader{
		pending:   []kafka.Message{{Offset: 1, Value: []byte(`{"address":"10.0.0.1"}`)}},
		commitErr: errors.New("coordinator not available"),
	}
	c := newConsumer[dm.DeviceMessage](r)

	_, err := c.Read(context.Background())
	assert.ErrorContains(t, err, "coordinator not available")
}
