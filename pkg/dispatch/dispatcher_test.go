package dispatch_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudops-tools/quota-notifier/pkg/compose"
	"github.com/cloudops-tools/quota-notifier/pkg/dispatch"
	"github.com/cloudops-tools/quota-notifier/pkg/model"
	"github.com/cloudops-tools/quota-notifier/pkg/throttle"
)

type fakeChannel struct {
	mu    sync.Mutex
	sent  []string // recipient addresses in send order
	fails map[string]error
}

func (f *fakeChannel) Name() string { return "fake" }

func (f *fakeChannel) Send(_ context.Context, _, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fails[to]; err != nil {
		return err
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeChannel) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type failingStore struct {
	throttle.Store
	failCheck  bool
	failRecord bool
}

func (f *failingStore) ShouldSend(ctx context.Context, email string, now time.Time, cooldown time.Duration) (bool, error) {
	if f.failCheck {
		return false, errors.New("disk full")
	}
	return f.Store.ShouldSend(ctx, email, now, cooldown)
}

func (f *failingStore) RecordSend(ctx context.Context, email string, now time.Time) error {
	if f.failRecord {
		return errors.New("disk full")
	}
	return f.Store.RecordSend(ctx, email, now)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) throttle.Store {
	t.Helper()
	store, err := throttle.NewSQLite(filepath.Join(t.TempDir(), "throttle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestDispatcher(t *testing.T, channel dispatch.Channel, store throttle.Store) *dispatch.Dispatcher {
	t.Helper()
	composer, err := compose.New("ops@example.com")
	require.NoError(t, err)
	return dispatch.New(channel, store, composer, "ops@example.com", 24*time.Hour, testLogger())
}

func acmeSnapshot() model.OrgUsageSnapshot {
	return model.OrgUsageSnapshot{
		OrgID:         "org-1",
		OrgName:       "acme",
		MemoryLimitMB: 10240,
		MemoryUsedMB:  8192,
		PercentUsed:   80,
	}
}

func TestDispatcher_SendsAndRecords(t *testing.T) {
	channel := &fakeChannel{}
	store := newTestStore(t)
	d := newTestDispatcher(t, channel, store)

	res, err := d.Dispatch(context.Background(), acmeSnapshot(), []model.Recipient{
		{UserID: "u-1", GivenName: "Alice", Email: "a@x.com"},
		{UserID: "u-2", GivenName: "Bob"}, // no email on file: never attempted
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, res.Sent)
	assert.Zero(t, res.Throttled)
	assert.Zero(t, res.Failed)
	assert.Equal(t, []string{"a@x.com"}, channel.sentTo())

	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a@x.com", records[0].Email)
	assert.WithinDuration(t, time.Now().UTC(), records[0].LastSent, time.Minute)
}

func TestDispatcher_ReplayDoesNotDoubleSend(t *testing.T) {
	channel := &fakeChannel{}
	store := newTestStore(t)
	d := newTestDispatcher(t, channel, store)
	recipients := []model.Recipient{{UserID: "u-1", GivenName: "Alice", Email: "a@x.com"}}

	res, err := d.Dispatch(context.Background(), acmeSnapshot(), recipients)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	// Immediate replay of the same pass: suppressed by the fresh record.
	res, err = d.Dispatch(context.Background(), acmeSnapshot(), recipients)
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	assert.Equal(t, 1, res.Throttled)
	assert.Len(t, channel.sentTo(), 1)

	// The record is unchanged by the throttled replay.
	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestDispatcher_FailedSendDoesNotBlockOthers(t *testing.T) {
	channel := &fakeChannel{fails: map[string]error{"a@x.com": errors.New("mailbox unavailable")}}
	store := newTestStore(t)
	d := newTestDispatcher(t, channel, store)

	res, err := d.Dispatch(context.Background(), acmeSnapshot(), []model.Recipient{
		{UserID: "u-1", Email: "a@x.com"},
		{UserID: "u-2", Email: "b@x.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"b@x.com"}, channel.sentTo())

	// No record for the failed recipient: they stay eligible next pass.
	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b@x.com", records[0].Email)
}

func TestDispatcher_StoreCheckFailureAbortsPass(t *testing.T) {
	channel := &fakeChannel{}
	store := &failingStore{Store: newTestStore(t), failCheck: true}
	d := newTestDispatcher(t, channel, store)

	_, err := d.Dispatch(context.Background(), acmeSnapshot(), []model.Recipient{
		{UserID: "u-1", Email: "a@x.com"},
	})
	require.Error(t, err)
	assert.Empty(t, channel.sentTo())
}

func TestDispatcher_StoreRecordFailureReported(t *testing.T) {
	channel := &fakeChannel{}
	store := &failingStore{Store: newTestStore(t), failRecord: true}
	d := newTestDispatcher(t, channel, store)

	_, err := d.Dispatch(context.Background(), acmeSnapshot(), []model.Recipient{
		{UserID: "u-1", Email: "a@x.com"},
	})
	require.Error(t, err)
}

func TestDispatcher_CooldownExpiryAllowsResend(t *testing.T) {
	channel := &fakeChannel{}
	store := newTestStore(t)
	d := newTestDispatcher(t, channel, store)
	recipients := []model.Recipient{{UserID: "u-1", Email: "a@x.com"}}

	// Simulate a send recorded 25 hours ago, outside the 24h window.
	require.NoError(t, store.RecordSend(context.Background(), "a@x.com", time.Now().UTC().Add(-25*time.Hour)))

	res, err := d.Dispatch(context.Background(), acmeSnapshot(), recipients)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}
