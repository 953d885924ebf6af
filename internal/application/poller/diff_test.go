package poller

import (
	"testing"

	"github.com/restockwatch/worker/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestOverall_OnlineOnly(t *testing.T) {
	s := domain.AvailabilityState{Online: domain.OnlineAvailability{Available: true}}
	assert.True(t, s.Overall())

	s.Online.Available = false
	assert.False(t, s.Overall())
}

func TestOverall_AnyStoreCounts(t *testing.T) {
	s := domain.AvailabilityState{
		Online: domain.OnlineAvailability{Available: false},
		Stores: []domain.StoreAvailability{
			{StoreID: "100", Available: false},
			{StoreID: "200", Available: true},
		},
	}
	assert.True(t, s.Overall())
}

func TestDiff_NoChange(t *testing.T) {
	prev := domain.AvailabilityState{Online: domain.OnlineAvailability{Available: false}}
	now := domain.AvailabilityState{
		Stores: []domain.StoreAvailability{{StoreID: "100", Available: false}},
	}
	v := Diff(prev, now)
	assert.False(t, v.Changed())
	assert.False(t, v.Was)
	assert.False(t, v.Now)
}

func TestDiff_OnlineToStoreIsNotAChange(t *testing.T) {
	// Availability moving from online to in-store keeps the overall verdict
	// true, so no transition is detected.
	prev := domain.AvailabilityState{Online: domain.OnlineAvailability{Available: true}}
	now := domain.AvailabilityState{
		Online: domain.OnlineAvailability{Available: false},
		Stores: []domain.StoreAvailability{{StoreID: "100", Available: true}},
	}
	assert.False(t, Diff(prev, now).Changed())
}

func TestDiff_Transition(t *testing.T) {
	prev := domain.AvailabilityState{}
	now := domain.AvailabilityState{Online: domain.OnlineAvailability{Available: true}}
	v := Diff(prev, now)
	assert.True(t, v.Changed())
	assert.False(t, v.Was)
	assert.True(t, v.Now)
}
