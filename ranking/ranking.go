// Package ranking builds global and partitioned standings from participant
// point totals. Everything here is pure; callers supply a current snapshot.
package ranking

import (
	"slices"

	"loyaltykit/core"
)

// Participant is one row of the input snapshot.
type Participant struct {
	ID      core.ParticipantID `json:"participantId"`
	Points  int64              `json:"points"`
	Country string             `json:"country,omitempty"`
	City    string             `json:"city,omitempty"`
}

// Entry is a ranked participant. Rank is 1-based.
type Entry struct {
	Rank          int                `json:"rank"`
	ParticipantID core.ParticipantID `json:"participantId"`
	Points        int64              `json:"points"`
	Country       string             `json:"country,omitempty"`
	City          string             `json:"city,omitempty"`
}

// Dimension selects the partition key.
type Dimension string

const (
	ByCountry Dimension = "country"
	ByCity    Dimension = "city"
)

// ParseDimension accepts "country" or "city".
func ParseDimension(s string) (Dimension, bool) {
	switch Dimension(s) {
	case ByCountry, ByCity:
		return Dimension(s), true
	}
	return "", false
}

func (d Dimension) key(p Participant) string {
	if d == ByCity {
		return p.City
	}
	return p.Country
}

// Group is the ranking of one partition.
type Group struct {
	Key     string  `json:"key"`
	Entries []Entry `json:"entries"`
}

// Aggregate sorts participants by points descending and assigns ranks by
// position. Equal points keep their input order. The input is not modified.
func Aggregate(participants []Participant) []Entry {
	sorted := slices.Clone(participants)
	slices.SortStableFunc(sorted, func(a, b Participant) int {
		switch {
		case a.Points > b.Points:
			return -1
		case a.Points < b.Points:
			return 1
		}
		return 0
	})
	out := make([]Entry, len(sorted))
	for i, p := range sorted {
		out[i] = Entry{
			Rank:          i + 1,
			ParticipantID: p.ID,
			Points:        p.Points,
			Country:       p.Country,
			City:          p.City,
		}
	}
	return out
}

// Partition groups participants by d and ranks every group on its own.
// Groups appear in the order their key is first seen in the input.
func Partition(participants []Participant, d Dimension) []Group {
	index := map[string]int{}
	var buckets [][]Participant
	var keys []string
	for _, p := range participants {
		k := d.key(p)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, nil)
			keys = append(keys, k)
		}
		buckets[i] = append(buckets[i], p)
	}
	groups := make([]Group, len(buckets))
	for i, b := range buckets {
		groups[i] = Group{Key: keys[i], Entries: Aggregate(b)}
	}
	return groups
}

// Lookup returns the group with the given key.
func Lookup(groups []Group, key string) (Group, bool) {
	for _, g := range groups {
		if g.Key == key {
			return g, true
		}
	}
	return Group{}, false
}

// Top returns at most n entries. n <= 0 returns all of them.
func Top(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
