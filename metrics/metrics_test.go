package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/buildkite/procctl/logger"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	kind  string
	name  string
	value any
	tags  []string
}

type fakeClient struct {
	mu     sync.Mutex
	sent   []sent
	closed bool
}

func (f *fakeClient) Timing(name string, value time.Duration, tags []string, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{"timing", name, value, tags})
	return nil
}

func (f *fakeClient) Count(name string, value int64, tags []string, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{"count", name, value, tags})
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestScopeSendsWithMergedTags(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{}
	c := NewCollector(logger.Discard, CollectorConfig{})
	c.client = fake

	scope := c.Scope(Tags{"command": "make"}).With(Tags{"host": "build-1"})
	scope.Count("process.started", 1)
	scope.Timing("process.duration", 2*time.Second, Tags{"reason": "exited"})

	want := []sent{
		{"count", "process.started", int64(1), []string{"command:make", "host:build_1"}},
		{"timing", "process.duration", 2 * time.Second, []string{"command:make", "host:build_1", "reason:exited"}},
	}
	if diff := cmp.Diff(want, fake.sent, cmp.AllowUnexported(sent{})); diff != "" {
		t.Errorf("sent metrics diff (-want +got):\n%s", diff)
	}

	require.NoError(t, c.Stop())
	assert.True(t, fake.closed)
}

func TestNilAndDisabledScopesDiscard(t *testing.T) {
	t.Parallel()

	var nilScope *Scope
	nilScope.Count("x", 1)
	nilScope.Timing("x", time.Second)
	assert.Nil(t, nilScope.With(Tags{"a": "b"}))

	c := NewCollector(logger.Discard, CollectorConfig{})
	require.NoError(t, c.Start(), "a collector without datadog starts nothing")
	c.Scope(nil).Count("x", 1)
	assert.NoError(t, c.Stop())
}

func TestStartAddsDefaultPort(t *testing.T) {
	t.Parallel()

	c := NewCollector(logger.Discard, CollectorConfig{Datadog: true, DatadogHost: "127.0.0.1"})
	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Stop() })

	assert.Equal(t, "127.0.0.1:8125", c.config.DatadogHost)
	assert.NotNil(t, c.client)
}

func TestTagsStringSlice(t *testing.T) {
	t.Parallel()

	tags := Tags{"b": "two words", "a": "1", "empty": ""}
	assert.Equal(t, []string{"a:1", "b:two_words"}, tags.StringSlice())
}
