package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusScheduled: {StatusActive, StatusCancelled},
		StatusActive:    {StatusEnded, StatusCancelled},
		StatusEnded:     nil,
		StatusCancelled: nil,
	}

	all := []Status{StatusScheduled, StatusActive, StatusEnded, StatusCancelled}
	for from, nexts := range allowed {
		legal := make(map[Status]bool, len(nexts))
		for _, next := range nexts {
			legal[next] = true
		}
		for _, to := range all {
			assert.Equal(t, legal[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestReserveMet(t *testing.T) {
	noReserve := Auction{CurrentPrice: 10, ReservePrice: 0}
	assert.True(t, noReserve.ReserveMet())

	below := Auction{CurrentPrice: 10, ReservePrice: 50}
	assert.False(t, below.ReserveMet())

	met := Auction{CurrentPrice: 50, ReservePrice: 50}
	assert.True(t, met.ReserveMet())
}
