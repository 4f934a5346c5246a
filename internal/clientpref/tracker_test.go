package clientpref

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-resolver/internal/model"
)

func identities(names ...string) []model.ClientIdentity {
	out := make([]model.ClientIdentity, 0, len(names))
	for _, n := range names {
		out = append(out, model.ClientIdentity{Name: n, ExtraArguments: []string{"--extractor-args", "youtube:player_client=" + n}})
	}
	return out
}

func names(clients []model.ClientIdentity) []string {
	out := make([]string, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.Name)
	}
	return out
}

func TestTracker_MovesRecordedClientToFront(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())
	defaults := identities("default", "ios", "web")

	require.NoError(t, tracker.Record("item1", "ios"))

	got := tracker.OrderedClients("item1", defaults)
	assert.Equal(t, []string{"ios", "default", "web"}, names(got))
	assert.Equal(t, []string{"default", "ios", "web"}, names(defaults), "canonical list must not change")
}

func TestTracker_IsPerItem(t *testing.T) {
	tracker := NewTracker(nil)
	defaults := identities("default", "ios", "web")

	require.NoError(t, tracker.Record("item1", "web"))
	assert.Equal(t, []string{"default", "ios", "web"}, names(tracker.OrderedClients("item2", defaults)))
	assert.Equal(t, []string{"web", "default", "ios"}, names(tracker.OrderedClients("item1", defaults)))
}

func TestReorder(t *testing.T) {
	defaults := identities("default", "ios", "web")

	tests := []struct {
		name      string
		preferred string
		want      []string
	}{
		{"no record", "", []string{"default", "ios", "web"}},
		{"unknown client", "android", []string{"default", "ios", "web"}},
		{"already first", "default", []string{"default", "ios", "web"}},
		{"last", "web", []string{"web", "default", "ios"}},
		{"case insensitive", "IOS", []string{"ios", "default", "web"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reorder(defaults, tt.preferred)
			assert.Equal(t, tt.want, names(got))
			assert.Len(t, got, len(defaults))
		})
	}
}

func TestReorder_ReturnsIndependentCopy(t *testing.T) {
	defaults := identities("default", "ios")
	got := Reorder(defaults, "ios")
	got[0].ExtraArguments[0] = "mutated"
	assert.Equal(t, "--extractor-args", defaults[1].ExtraArguments[0])
}

type failingStore struct{}

func (failingStore) PreferredClient(string) (string, error) { return "", errors.New("disk gone") }
func (failingStore) RecordClient(string, string) error { return errors.New("disk gone") }

func TestTracker_StoreErrors(t *testing.T) {
	tracker := NewTracker(failingStore{})
	assert.Error(t, tracker.Record("item1", "ios"))
	assert.Equal(t, []string{"default", "ios"}, names(tracker.OrderedClients("item1", identities("default", "ios"))))
	assert.Error(t, tracker.Record("", "ios"))
}
