package main

import (
	"fmt"
	"math/rand"

	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/google/uuid"
)

var sampleCourses = []string{"go-101", "go-concurrency", "sql-basics", "kafka-in-practice"}

type learner struct {
	ID    string
	Email string
}

func newLearners(n int) []learner {
	learners := make([]learner, n)
	for i := range learners {
		learners[i] = learner{
			ID:    uuid.NewString(),
			Email: fmt.Sprintf("learner%d@example.com", i+1),
		}
	}
	return learners
}

// journey is the sequence of events one learner produces in a sample run:
// login, enroll, a lesson and a quiz, sometimes finishing the course.
func journey(rng *rand.Rand, l learner) []event.TrackRequest {
	course := sampleCourses[rng.Intn(len(sampleCourses))]
	quizID := course + "-quiz-" + fmt.Sprint(rng.Intn(3)+1)
	base := map[string]any{
		event.FieldUserID:    l.ID,
		event.FieldUserEmail: l.Email,
	}
	with := func(extra map[string]any) map[string]any {
		data := make(map[string]any, len(base)+len(extra))
		for k, v := range base {
			data[k] = v
		}
		for k, v := range extra {
			data[k] = v
		}
		return data
	}

	events := []event.TrackRequest{
		{EventType: event.EventTypeLogin, EventData: with(nil)},
		{EventType: event.EventTypeCourseEnrollment, EventData: with(map[string]any{event.FieldCourseID: course})},
		{EventType: event.EventTypeLessonStart, EventData: with(map[string]any{event.FieldCourseID: course, "lessonId": "intro"})},
		{EventType: event.EventTypeQuizComplete, EventData: with(map[string]any{
			event.FieldCourseID: course,
			event.FieldQuizID:   quizID,
			event.FieldScore:    rng.Intn(101),
		})},
	}
	if rng.Intn(3) == 0 {
		events = append(events,
			event.TrackRequest{EventType: event.EventTypeCourseCompletion, EventData: with(map[string]any{event.FieldCourseID: course})},
			event.TrackRequest{EventType: event.EventTypeAchievementUnlock, EventData: with(map[string]any{"achievement": "first_course"})},
		)
	}
	return events
}
