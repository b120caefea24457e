package rollup

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/store"
)

const (
	// Collection holds one counter document per calendar day, keyed by date.
	Collection = "dailyAnalytics"
	// RebuiltCollection receives rollups recomputed from raw events.
	RebuiltCollection = "dailyAnalyticsRebuilt"

	// UnknownCourse collects enrollments that arrived without a courseId.
	UnknownCourse = "unknown"
	// OverflowKey collects course keys beyond the per-day cap.
	OverflowKey = "other"
)

// Field paths inside a rollup document.
const (
	fieldDate                 = "date"
	fieldLastUpdated          = "lastUpdated"
	fieldEvents               = "events"
	fieldEnrollments          = "enrollments"
	fieldQuizScores           = "quizScores"
	fieldTotalEnrollments     = "totalEnrollments"
	fieldQuizCompletions      = "quizCompletions"
	fieldUniqueLogins         = "uniqueLogins"
	fieldAchievementsUnlocked = "achievementsUnlocked"
)

// Counter maps a dynamic key (event type, course id, score bucket) to a count.
type Counter map[string]int64

func (c Counter) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}

// Add folds other into c.
func (c Counter) Add(other Counter) {
	for k, n := range other {
		c[k] += n
	}
}

// Keys returns the keys in ascending order.
func (c Counter) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type DailyRollup struct {
	Date                 string    `json:"date"`
	Events               Counter   `json:"events"`
	Enrollments          Counter   `json:"enrollments"`
	QuizScores           Counter   `json:"quizScores"`
	TotalEnrollments     int64     `json:"totalEnrollments"`
	QuizCompletions      int64     `json:"quizCompletions"`
	UniqueLogins         int64     `json:"uniqueLogins"`
	AchievementsUnlocked int64     `json:"achievementsUnlocked"`
	LastUpdated          time.Time `json:"lastUpdated,omitempty"`
}

func newDailyRollup(date string) *DailyRollup {
	return &DailyRollup{
		Date:        date,
		Events:      Counter{},
		Enrollments: Counter{},
		QuizScores:  Counter{},
	}
}

// TotalEvents is the number of events of any type that day.
func (r *DailyRollup) TotalEvents() int64 {
	return r.Events.Total()
}

// apply adds a set of field-path deltas, as produced by Deltas.
func (r *DailyRollup) apply(deltas map[string]int64) {
	for path, n := range deltas {
		head, key, nested := strings.Cut(path, ".")
		switch {
		case nested && head == fieldEvents:
			r.Events[key] += n
		case nested && head == fieldEnrollments:
			r.Enrollments[key] += n
		case nested && head == fieldQuizScores:
			r.QuizScores[key] += n
		case head == fieldTotalEnrollments:
			r.TotalEnrollments += n
		case head == fieldQuizCompletions:
			r.QuizCompletions += n
		case head == fieldUniqueLogins:
			r.UniqueLogins += n
		case head == fieldAchievementsUnlocked:
			r.AchievementsUnlocked += n
		}
	}
}

// document renders the rollup as field paths suitable for Merge.
func (r *DailyRollup) document() store.Document {
	doc := store.Document{
		fieldDate:                 r.Date,
		fieldLastUpdated:          r.LastUpdated,
		fieldTotalEnrollments:     r.TotalEnrollments,
		fieldQuizCompletions:      r.QuizCompletions,
		fieldUniqueLogins:         r.UniqueLogins,
		fieldAchievementsUnlocked: r.AchievementsUnlocked,
		fieldEvents:               counterDocument(r.Events),
		fieldEnrollments:          counterDocument(r.Enrollments),
		fieldQuizScores:           counterDocument(r.QuizScores),
	}
	return doc
}

func fromDocument(doc store.Document) DailyRollup {
	date := doc.String(fieldDate)
	if date == "" {
		date = doc.String(store.KeyField)
	}
	updated, _ := doc.Time(fieldLastUpdated)

	return DailyRollup{
		Date:                 date,
		Events:               counterFrom(doc.Map(fieldEvents)),
		Enrollments:          counterFrom(doc.Map(fieldEnrollments)),
		QuizScores:           counterFrom(doc.Map(fieldQuizScores)),
		TotalEnrollments:     doc.Int64(fieldTotalEnrollments),
		QuizCompletions:      doc.Int64(fieldQuizCompletions),
		UniqueLogins:         doc.Int64(fieldUniqueLogins),
		AchievementsUnlocked: doc.Int64(fieldAchievementsUnlocked),
		LastUpdated:          updated,
	}
}

func counterFrom(m map[string]any) Counter {
	c := make(Counter, len(m))
	for k, v := range m {
		if n, ok := store.AsInt64(v); ok {
			c[k] = n
		}
	}
	return c
}

func counterDocument(c Counter) map[string]any {
	m := make(map[string]any, len(c))
	for k, n := range c {
		m[k] = n
	}
	return m
}

// ScoreBucket maps a score onto its decile: 0-9 -> 0, 10-19 -> 10, ..., 90-100 -> 90.
// Scores outside [0, 100] are clamped.
func ScoreBucket(score float64) int {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	bucket := int(math.Floor(score/10)) * 10
	if bucket > 90 {
		return 90
	}
	return bucket
}

// BucketKey is the rollup and distribution key for a score.
func BucketKey(score float64) string {
	return strconv.Itoa(ScoreBucket(score))
}

// sanitizeKey makes an externally supplied id safe to use as a field path
// segment in both store backends.
func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return UnknownCourse
	}
	return strings.NewReplacer(".", "_", "$", "_").Replace(key)
}
