package main

import (
	"math/rand"
	"testing"

	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJourneyProducesValidEvents(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	learners := newLearners(20)
	require.Len(t, learners, 20)

	for _, l := range learners {
		events := journey(rng, l)
		require.GreaterOrEqual(t, len(events), 4)
		assert.Equal(t, event.EventTypeLogin, events[0].EventType)

		for _, ev := range events {
			assert.True(t, event.IsValidType(ev.EventType), ev.EventType)
			assert.Equal(t, l.Email, ev.EventData[event.FieldUserEmail])
		}

		score, ok := events[3].EventData[event.FieldScore].(int)
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
}
