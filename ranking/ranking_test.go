package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Participant {
	return []Participant{
		{ID: "a", Points: 100, Country: "FR", City: "Paris"},
		{ID: "b", Points: 300, Country: "FR", City: "Lyon"},
		{ID: "c", Points: 300, Country: "US", City: "NY"},
	}
}

func TestAggregateStableTies(t *testing.T) {
	in := sample()
	got := Aggregate(in)
	require.Len(t, got, 3)
	assert.Equal(t, Entry{Rank: 1, ParticipantID: "b", Points: 300, Country: "FR", City: "Lyon"}, got[0])
	assert.Equal(t, Entry{Rank: 2, ParticipantID: "c", Points: 300, Country: "US", City: "NY"}, got[1])
	assert.Equal(t, Entry{Rank: 3, ParticipantID: "a", Points: 100, Country: "FR", City: "Paris"}, got[2])

	// input untouched
	assert.Equal(t, sample(), in)
}

func TestPartitionByCountry(t *testing.T) {
	groups := Partition(sample(), ByCountry)
	require.Len(t, groups, 2)
	assert.Equal(t, "FR", groups[0].Key)
	assert.Equal(t, "US", groups[1].Key)

	fr := groups[0].Entries
	require.Len(t, fr, 2)
	assert.Equal(t, 1, fr[0].Rank)
	assert.EqualValues(t, "b", fr[0].ParticipantID)
	assert.Equal(t, 2, fr[1].Rank)
	assert.EqualValues(t, "a", fr[1].ParticipantID)

	us, ok := Lookup(groups, "US")
	require.True(t, ok)
	require.Len(t, us.Entries, 1)
	assert.Equal(t, 1, us.Entries[0].Rank)
	assert.EqualValues(t, "c", us.Entries[0].ParticipantID)
}

func TestPartitionByCityResetsRank(t *testing.T) {
	in := append(sample(), Participant{ID: "d", Points: 50, Country: "FR", City: "Paris"})
	groups := Partition(in, ByCity)
	paris, ok := Lookup(groups, "Paris")
	require.True(t, ok)
	require.Len(t, paris.Entries, 2)
	assert.EqualValues(t, "a", paris.Entries[0].ParticipantID)
	assert.Equal(t, 1, paris.Entries[0].Rank)
	assert.Equal(t, 2, paris.Entries[1].Rank)

	global := Aggregate(in)
	assert.Equal(t, 3, global[2].Rank)
	assert.EqualValues(t, "a", global[2].ParticipantID)

	_, ok = Lookup(groups, "Berlin")
	assert.False(t, ok)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
	assert.Empty(t, Partition(nil, ByCountry))
}

func TestTopAndParseDimension(t *testing.T) {
	all := Aggregate(sample())
	assert.Len(t, Top(all, 2), 2)
	assert.Len(t, Top(all, 0), 3)
	assert.Len(t, Top(all, 10), 3)

	d, ok := ParseDimension("city")
	assert.True(t, ok)
	assert.Equal(t, ByCity, d)
	_, ok = ParseDimension("region")
	assert.False(t, ok)
}
