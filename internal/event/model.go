package event

import (
	"time"

	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
)

// Collection holds one document per tracked event.
const Collection = "events"

// HeaderEventType carries the event type on published records.
const HeaderEventType = "event-type"

const (
	EventTypeCourseEnrollment    = "course_enrollment"
	EventTypeCourseCompletion    = "course_completion"
	EventTypeLessonStart         = "lesson_start"
	EventTypeLessonComplete      = "lesson_complete"
	EventTypeQuizStart           = "quiz_start"
	EventTypeQuizComplete        = "quiz_complete"
	EventTypeLogin               = "login"
	EventTypeLogout              = "logout"
	EventTypeAchievementUnlock   = "achievement_unlock"
	EventTypeLevelUp             = "level_up"
	EventTypeStreakMilestone     = "streak_milestone"
	EventTypeCertificateDownload = "certificate_download"
	EventTypeVideoWatch          = "video_watch"
	EventTypePageView            = "page_view"
	EventTypeSearchQuery         = "search_query"
	EventTypeFeatureUse          = "feature_use"
)

var eventTypes = map[string]struct{}{
	EventTypeCourseEnrollment:    {},
	EventTypeCourseCompletion:    {},
	EventTypeLessonStart:         {},
	EventTypeLessonComplete:      {},
	EventTypeQuizStart:           {},
	EventTypeQuizComplete:        {},
	EventTypeLogin:               {},
	EventTypeLogout:              {},
	EventTypeAchievementUnlock:   {},
	EventTypeLevelUp:             {},
	EventTypeStreakMilestone:     {},
	EventTypeCertificateDownload: {},
	EventTypeVideoWatch:          {},
	EventTypePageView:            {},
	EventTypeSearchQuery:         {},
	EventTypeFeatureUse:          {},
}

func IsValidType(eventType string) bool {
	_, ok := eventTypes[eventType]
	return ok
}

// Well-known eventData keys. Payloads vary per type, so readers must treat
// every one of them as optional.
const (
	FieldCourseID  = "courseId"
	FieldQuizID    = "quizId"
	FieldScore     = "score"
	FieldUserEmail = "userEmail"
	FieldUserID    = "userId"
	FieldTimeSpent = "timeSpent"
)

type Event struct {
	ID        string         `json:"id"`
	EventType string         `json:"eventType"`
	EventData map[string]any `json:"eventData"`
	Timestamp time.Time      `json:"timestamp"`
	Date      string         `json:"date"`
	Hour      int            `json:"hour"`
	DayOfWeek int            `json:"dayOfWeek"`
	Month     int            `json:"month"`
	Year      int            `json:"year"`
}

// NewEvent stamps the event and derives the calendar fields in loc.
func NewEvent(id, eventType string, data map[string]any, timestamp time.Time, loc *time.Location) *Event {
	if data == nil {
		data = map[string]any{}
	}
	local := timestamp.In(loc)

	return &Event{
		ID:        id,
		EventType: eventType,
		EventData: data,
		Timestamp: timestamp,
		Date:      local.Format(timerange.DateLayout),
		Hour:      local.Hour(),
		DayOfWeek: int(local.Weekday()),
		Month:     int(local.Month()),
		Year:      local.Year(),
	}
}

// UserKey identifies the actor by email, or by user id when no email is set.
func (e *Event) UserKey() string {
	if email := stringField(e.EventData, FieldUserEmail); email != "" {
		return email
	}
	return stringField(e.EventData, FieldUserID)
}

func (e *Event) Email() string {
	return stringField(e.EventData, FieldUserEmail)
}

func (e *Event) CourseID() string {
	return stringField(e.EventData, FieldCourseID)
}

func (e *Event) QuizID() string {
	return stringField(e.EventData, FieldQuizID)
}

// Score reports the numeric score if the payload carries one.
func (e *Event) Score() (float64, bool) {
	v, ok := e.EventData[FieldScore]
	if !ok {
		return 0, false
	}
	return store.AsFloat64(v)
}

func (e *Event) Document() store.Document {
	doc := store.Document{
		"eventType": e.EventType,
		"eventData": e.EventData,
		"timestamp": e.Timestamp,
		"date":      e.Date,
		"hour":      e.Hour,
		"dayOfWeek": e.DayOfWeek,
		"month":     e.Month,
		"year":      e.Year,
	}
	// Top-level copies of the actor keep per-user lookups off nested paths.
	if email := stringField(e.EventData, FieldUserEmail); email != "" {
		doc[FieldUserEmail] = email
	}
	if id := stringField(e.EventData, FieldUserID); id != "" {
		doc[FieldUserID] = id
	}
	return doc
}

// FromDocument reads an event back from the store, tolerating missing fields.
func FromDocument(doc store.Document) *Event {
	ts, _ := doc.Time("timestamp")
	data := doc.Map("eventData")
	if data == nil {
		data = map[string]any{}
	}

	return &Event{
		ID:        doc.String(store.KeyField),
		EventType: doc.String("eventType"),
		EventData: data,
		Timestamp: ts,
		Date:      doc.String("date"),
		Hour:      int(doc.Int64("hour")),
		DayOfWeek: int(doc.Int64("dayOfWeek")),
		Month:     int(doc.Int64("month")),
		Year:      int(doc.Int64("year")),
	}
}

func stringField(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	s, _ := store.AsString(v)
	return s
}
