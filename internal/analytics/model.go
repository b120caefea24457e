package analytics

import (
	"time"

	"github.com/Wuchinator/learning-analytics/internal/rollup"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
)

// Profile is the read-only gamification record of one user.
type Profile struct {
	UserID        string    `json:"userId"`
	Email         string    `json:"email,omitempty"`
	Level         int       `json:"level"`
	TotalXP       int64     `json:"totalXP"`
	LastLoginDate time.Time `json:"lastLoginDate"`
	CreatedAt     time.Time `json:"createdAt"`
}

// QuizAttempt is the read-only record of one finished quiz.
type QuizAttempt struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quizId"`
	UserID      string    `json:"userId"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}

type UserAnalytics struct {
	TotalUsers        int            `json:"totalUsers"`
	ActiveUsers       int            `json:"activeUsers"`
	NewUsers          int            `json:"newUsers"`
	AverageLevel      float64        `json:"averageLevel"`
	TotalXP           int64          `json:"totalXP"`
	LevelDistribution map[string]int `json:"levelDistribution"`
	RetentionRate     float64        `json:"retentionRate"`
	Truncated         bool           `json:"truncated"`
}

type Percentiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

type EngagementMetrics struct {
	TotalEvents            int            `json:"totalEvents"`
	EventsByType           map[string]int `json:"eventsByType"`
	EventsByDay            map[string]int `json:"eventsByDay"`
	EventsByHour           [24]int        `json:"eventsByHour"`
	UniqueUsers            int            `json:"uniqueUsers"`
	TotalSessions          int            `json:"totalSessions"`
	TotalSessionTime       float64        `json:"totalSessionTime"`
	AverageSessionTime     float64        `json:"averageSessionTime"`
	SessionTimePercentiles Percentiles    `json:"sessionTimePercentiles"`
	MostActiveHour         int            `json:"mostActiveHour"`
	PeakDay                string         `json:"peakDay"`
	Truncated              bool           `json:"truncated"`
}

type CourseStats struct {
	CourseID       string  `json:"courseId"`
	Enrollments    int     `json:"enrollments"`
	Completions    int     `json:"completions"`
	QuizAttempts   int     `json:"quizAttempts"`
	TotalScore     float64 `json:"totalScore"`
	ScoreCount     int     `json:"scoreCount"`
	AverageScore   float64 `json:"averageScore"`
	CompletionRate float64 `json:"completionRate"`
}

type CourseMetrics struct {
	TotalCourses      int                     `json:"totalCourses"`
	CoursePerformance map[string]*CourseStats `json:"coursePerformance"`
	TopCourses        []CourseStats           `json:"topCourses"`
	Truncated         bool                    `json:"truncated"`
}

type QuizStats struct {
	QuizID           string  `json:"quizId"`
	Attempts         int     `json:"attempts"`
	TotalScore       float64 `json:"totalScore"`
	PerfectScores    int     `json:"perfectScores"`
	AverageScore     float64 `json:"averageScore"`
	PerfectScoreRate float64 `json:"perfectScoreRate"`
}

type QuizMetrics struct {
	TotalAttempts        int                   `json:"totalAttempts"`
	AverageScore         float64               `json:"averageScore"`
	PerfectScores        int                   `json:"perfectScores"`
	ScoreDistribution    map[string]int        `json:"scoreDistribution"`
	QuizPerformance      map[string]*QuizStats `json:"quizPerformance"`
	TopPerformingQuizzes []QuizStats           `json:"topPerformingQuizzes"`
	Truncated            bool                  `json:"truncated"`
}

type PathEvent struct {
	ID        string         `json:"id"`
	EventType string         `json:"eventType"`
	Date      string         `json:"date"`
	Timestamp time.Time      `json:"timestamp"`
	EventData map[string]any `json:"eventData"`
}

type LearningPath struct {
	User           string         `json:"user"`
	TotalEvents    int            `json:"totalEvents"`
	ActiveDays     int            `json:"activeDays"`
	CurrentStreak  int            `json:"currentStreak"`
	LongestStreak  int            `json:"longestStreak"`
	FirstActivity  *time.Time     `json:"firstActivity,omitempty"`
	LastActivity   *time.Time     `json:"lastActivity,omitempty"`
	EventsByType   map[string]int `json:"eventsByType"`
	CoursesTouched []string       `json:"coursesTouched"`
	Events         []PathEvent    `json:"events"`
	Truncated      bool           `json:"truncated"`
}

// OverviewTotals are the headline numbers of a dashboard.
type OverviewTotals struct {
	TotalUsers           int     `json:"totalUsers"`
	ActiveUsers          int     `json:"activeUsers"`
	NewUsers             int     `json:"newUsers"`
	RetentionRate        float64 `json:"retentionRate"`
	TotalEvents          int64   `json:"totalEvents"`
	TotalEnrollments     int64   `json:"totalEnrollments"`
	QuizCompletions      int64   `json:"quizCompletions"`
	UniqueLogins         int64   `json:"uniqueLogins"`
	AchievementsUnlocked int64   `json:"achievementsUnlocked"`
	AverageSessionTime   float64 `json:"averageSessionTime"`
}

type Overview struct {
	Period      string               `json:"period"`
	Range       timerange.Range      `json:"range"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Overview    OverviewTotals       `json:"overview"`
	DailyData   []rollup.DailyRollup `json:"dailyData"`
	Engagement  *EngagementMetrics   `json:"engagement"`
	Courses     *CourseMetrics       `json:"courses"`
}

// ExportDocument is the full JSON export: the overview plus the user and quiz
// sections.
type ExportDocument struct {
	*Overview
	Users   *UserAnalytics `json:"users"`
	Quizzes *QuizMetrics   `json:"quizzes"`
}

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

type Export struct {
	Data        []byte `json:"-"`
	Format      string `json:"format"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
}
