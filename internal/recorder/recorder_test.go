package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ex(id, method, url string, status int, durationMS int64) *Exchange {
	return &Exchange{
		ID: id, Method: method, URL: url, Status: status, DurationMS: durationMS,
		StartedAt: time.Now(), HasResponse: true,
	}
}

func TestS6FilterQuery(t *testing.T) {
	r := New(100)
	r.Append(ex("1", "GET", "/a", 200, 5))
	r.Append(ex("2", "POST", "/b", 200, 5))
	r.Append(ex("3", "GET", "/a?x=1", 200, 5))

	out := r.Query(Filter{Search: "a", Method: "GET"})
	require.Len(t, out, 2)
	// newest-first
	assert.Equal(t, "3", out[0].ID)
	assert.Equal(t, "1", out[1].ID)
}

func TestRingBoundEvictsOldest(t *testing.T) {
	r := New(3)
	r.Append(ex("1", "GET", "/x", 200, 1))
	r.Append(ex("2", "GET", "/x", 200, 1))
	r.Append(ex("3", "GET", "/x", 200, 1))
	r.Append(ex("4", "GET", "/x", 200, 1)) // evicts "1"

	all := r.Query(Filter{})
	require.Len(t, all, 3)
	_, found := r.Get("1")
	assert.False(t, found)
	_, found = r.Get("4")
	assert.True(t, found)
}

func TestStatsIncrementalByStatusClass(t *testing.T) {
	r := New(10)
	r.Append(ex("1", "GET", "/x", 200, 10))
	r.Append(ex("2", "GET", "/x", 404, 20))
	r.Append(ex("3", "GET", "/x", 500, 30))

	s := r.Stats()
	assert.EqualValues(t, 3, s.Total)
	assert.EqualValues(t, 1, s.Count2xx)
	assert.EqualValues(t, 1, s.Count4xx)
	assert.EqualValues(t, 1, s.Count5xx)
	assert.Equal(t, int64(10), s.MinDuration)
	assert.Equal(t, int64(30), s.MaxDuration)
	assert.InDelta(t, 20.0, s.AvgDuration(), 0.001)
}

func TestClearResetsStatsAndRing(t *testing.T) {
	r := New(10)
	r.Append(ex("1", "GET", "/x", 200, 10))
	r.Clear()
	assert.Empty(t, r.Query(Filter{}))
	assert.EqualValues(t, 0, r.Stats().Total)
}

func TestAnalyticsTopEndpoints(t *testing.T) {
	r := New(100)
	for i := 0; i < 5; i++ {
		r.Append(ex("a"+string(rune('0'+i)), "GET", "/hot", 200, 10))
	}
	r.Append(ex("b", "GET", "/cold", 200, 10))

	a := r.Analytics()
	require.NotEmpty(t, a.TopEndpoints)
	assert.Equal(t, "/hot", a.TopEndpoints[0].Path)
	assert.EqualValues(t, 5, a.TopEndpoints[0].Count)
}

func TestNewIDIsUniqueAndSortable(t *testing.T) {
	id1 := NewID()
	time.Sleep(time.Millisecond)
	id2 := NewID()
	assert.NotEqual(t, id1, id2)
	assert.Less(t, id1, id2)
}
