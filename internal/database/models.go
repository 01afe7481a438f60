package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Interview status values shared by mock and client interviews.
const (
	InterviewScheduled = "scheduled"
	InterviewCompleted = "completed"
)

// Client interview results.
const (
	ResultSelected = "selected"
	ResultRejected = "rejected"
)

// Terminal candidate markers. An empty value means the candidate is still
// active in the pipeline.
const (
	TerminalRejected  = "rejected"
	TerminalWithdrawn = "withdrawn"
)

// Technology tracks recognized at registration.
var Technologies = []string{"Java", "Python", ".NET", "DevOps", "SalesForce", "UI", "Testing"}

// Resource type classifications, orthogonal to technology.
var ResourceTypes = []string{"OM", "TCT1", "TCT2"}

// User represents a login account. Role holds the normalized role name
// (EMPLOYEE, DELIVERY, SALES, ADMIN); EmpID links employee accounts to
// their candidate record.
type User struct {
	gorm.Model
	Username           string `gorm:"uniqueIndex;size:64"`
	PasswordHash       string `gorm:"size:255"`
	Role               string `gorm:"size:16;default:EMPLOYEE"`
	EmpID              string `gorm:"size:32;index"`
	MustChangePassword bool
}

// Candidate is a person moving through the interview pipeline. The pipeline
// stage is never stored; it is derived from the interview sets on read.
type Candidate struct {
	gorm.Model
	EmpID        string `gorm:"uniqueIndex;size:32"`
	Name         string `gorm:"size:128"`
	Technology   string `gorm:"size:32;index"`
	ResourceType string `gorm:"size:16;index"`
	ResumeRef    string `gorm:"size:512"`
	// TerminalState is empty while the candidate is active; rejected or
	// withdrawn once an explicit terminal decision was recorded.
	TerminalState string `gorm:"size:16"`

	MockInterviews   []MockInterview   `gorm:"constraint:OnDelete:CASCADE"`
	ClientInterviews []ClientInterview `gorm:"constraint:OnDelete:CASCADE"`
}

// MockInterview is an internal assessment run by the delivery team.
// Scores are integers within 0..10 and are set together with feedback when
// the interview completes. Version backs the optimistic compare-and-set
// discipline of the transition engine.
type MockInterview struct {
	gorm.Model
	CandidateID           uint      `gorm:"index"`
	Candidate             Candidate `gorm:"constraint:OnDelete:CASCADE"`
	ScheduledAt           time.Time
	InterviewerID         string         `gorm:"size:32"`
	AttachmentRefs        datatypes.JSON `gorm:"type:jsonb"`
	Status                string         `gorm:"size:16;index"`
	TechnicalScore        *int
	CommunicationScore    *int
	TechnicalFeedback     string `gorm:"type:text"`
	CommunicationFeedback string `gorm:"type:text"`
	SentToSales           bool   `gorm:"default:false"`
	FeedbackFileRef       string `gorm:"size:512"`
	Version               int64  `gorm:"default:0"`
}

// ClientInterview is an external assessment on behalf of a hiring client,
// leveled 1..N per candidate. Scores accept one decimal place, unlike mock
// interviews, matching the historical input contract.
type ClientInterview struct {
	gorm.Model
	CandidateID         uint      `gorm:"index"`
	Candidate           Candidate `gorm:"constraint:OnDelete:CASCADE"`
	ClientName          string    `gorm:"size:128;index"`
	Level               int       `gorm:"index"`
	JobDescriptionTitle string    `gorm:"size:255"`
	MeetingLink         string    `gorm:"size:512"`
	InterviewerEmail    string    `gorm:"size:128"`
	ScheduledAt         time.Time
	AttachmentRef       string `gorm:"size:512"`
	Status              string `gorm:"size:16;index"`
	Result              string `gorm:"size:16"`
	TechnicalScore      *float64
	CommunicationScore  *float64
	Feedback            string `gorm:"type:text"`
	FeedbackFileRef     string `gorm:"size:512"`
	DeployedStatus      bool   `gorm:"default:false"`
	Version             int64  `gorm:"default:0"`
}

// Client is a hiring organization maintained by the sales team. Interviews
// and job descriptions reference it by name, not by foreign key, so renames
// do not rewrite history.
type Client struct {
	gorm.Model
	Name            string         `gorm:"uniqueIndex;size:128"`
	ContactEmail    string         `gorm:"size:128"`
	ActivePositions int            `gorm:"default:0"`
	Technologies    datatypes.JSON `gorm:"type:jsonb"`
}

// JobDescription is an open position received from a client. It feeds the
// pipeline only as a title label on client interviews.
type JobDescription struct {
	gorm.Model
	Title        string `gorm:"size:255;index"`
	ClientName   string `gorm:"size:128"`
	Technology   string `gorm:"size:32;index"`
	ResourceType string `gorm:"size:16"`
	ReceivedDate time.Time
	Deadline     time.Time
	Description  string `gorm:"type:text"`
	FileRef      string `gorm:"size:512"`
}

// InterviewQuestion is a community-maintained preparation question.
type InterviewQuestion struct {
	gorm.Model
	Technology string `gorm:"size:32;index"`
	Question   string `gorm:"type:text"`
	AddedBy    string `gorm:"size:64"`
}

// Models lists every persisted type for AutoMigrate calls.
func Models() []any {
	return []any{
		&User{},
		&Candidate{},
		&MockInterview{},
		&ClientInterview{},
		&Client{},
		&JobDescription{},
		&InterviewQuestion{},
	}
}
