package event

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"messenger-gateway/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	queue  string
	action string
	data   []byte
}

type fakePublisher struct {
	sent []emitted
	err  error
}

func (p *fakePublisher) Emit(ctx context.Context, queue string, action string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, emitted{queue: queue, action: action, data: data})
	return nil
}

func TestPlatformNotifierPublishesToPushQueue(t *testing.T) {
	pub := &fakePublisher{}
	n := NewPlatformNotifier(pub, "u1")

	event := model.NotificationEvent{Type: model.NotificationComment, PostId: "p1", Timestamp: 5}
	require.NoError(t, n.Notify(context.Background(), event))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, PushQueue, pub.sent[0].queue)
	assert.Equal(t, "comment", pub.sent[0].action)

	var body UserNotification
	require.NoError(t, json.Unmarshal(pub.sent[0].data, &body))
	assert.Equal(t, "u1", body.UserId)
	assert.Equal(t, event, body.Event)
}

func TestJournalRecordsAndReplays(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir)
	require.NoError(t, err)

	j.In(NotificationsQueue, "like", []byte(`{"userId":"u1"}`))
	j.In("unknown", "like", []byte(`{}`))
	j.Out(PushQueue, "like", []byte(`{"userId":"u2"}`))
	require.NoError(t, j.Close())

	raw, err := os.ReadFile(filepath.Join(dir, InLogFile))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))

	j, err = OpenJournal(dir)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	ch := make(chan Delivery, 4)
	n, err := j.ReplayIn(map[string]chan Delivery{NotificationsQueue: ch})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got := <-ch
	assert.Equal(t, "like", got.Action)
	assert.JSONEq(t, `{"userId":"u1"}`, string(got.Data))

	pub := &fakePublisher{}
	n, err = j.ReplayOut(pub)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, PushQueue, pub.sent[0].queue)

	n, err = j.ReplayOut(&fakePublisher{err: errors.New("closed")})
	assert.Error(t, err)
	assert.Zero(t, n)
}

type journalingPublisher struct {
	fakePublisher
	journal *Journal
}

func (p *journalingPublisher) Emit(ctx context.Context, queue string, action string, data []byte) error {
	p.journal.Out(queue, action, data)
	return p.fakePublisher.Emit(ctx, queue, action, data)
}

func TestResendThroughJournalingPublisher(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	j.Out(PushQueue, "like", []byte(`{"userId":"u1"}`))
	j.Out(PushQueue, "comment", []byte(`{"userId":"u2"}`))

	pub := &journalingPublisher{journal: j}
	n, err := j.ReplayOut(pub)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "like", pub.sent[0].action)
	assert.Equal(t, "comment", pub.sent[1].action)

	// the resent messages were journaled again
	n, err = j.ReplayOut(&fakePublisher{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestNilJournalIsSilent(t *testing.T) {
	var j *Journal
	j.In("q", "a", nil)
	j.Out("q", "a", nil)
	assert.NoError(t, j.Close())
}
