package pipeline

import (
	"testing"
	"time"

	"pipetrack/internal/database"
)

func day(n int) time.Time {
	return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestDeriveStageBeforeAnyInterview(t *testing.T) {
	cand := database.Candidate{EmpID: "E100"}
	if got := DeriveStage(cand); got != StageRegistered {
		t.Fatalf("fresh candidate stage = %q, want %q", got, StageRegistered)
	}

	cand.ResumeRef = "attachments/E100/resume.pdf"
	if got := DeriveStage(cand); got != StageResumeSubmitted {
		t.Fatalf("resume candidate stage = %q, want %q", got, StageResumeSubmitted)
	}
}

func TestDeriveStageMockProgression(t *testing.T) {
	cand := database.Candidate{
		EmpID:     "E100",
		ResumeRef: "attachments/E100/resume.pdf",
		MockInterviews: []database.MockInterview{
			{ScheduledAt: day(0), Status: database.InterviewScheduled},
		},
	}
	if got := DeriveStage(cand); got != StageMockScheduled {
		t.Fatalf("scheduled mock stage = %q, want %q", got, StageMockScheduled)
	}

	cand.MockInterviews[0].Status = database.InterviewCompleted
	if got := DeriveStage(cand); got != StageMockCompleted {
		t.Fatalf("completed mock stage = %q, want %q", got, StageMockCompleted)
	}

	cand.MockInterviews[0].SentToSales = true
	if got := DeriveStage(cand); got != StageSalesQueue {
		t.Fatalf("forwarded mock stage = %q, want %q", got, StageSalesQueue)
	}
}

func TestDeriveStageClientInterviews(t *testing.T) {
	cand := database.Candidate{
		EmpID: "E100",
		MockInterviews: []database.MockInterview{
			{ScheduledAt: day(0), Status: database.InterviewCompleted, SentToSales: true},
		},
		ClientInterviews: []database.ClientInterview{
			{Level: 1, ScheduledAt: day(3), Status: database.InterviewScheduled},
		},
	}
	if got := DeriveStage(cand); got != StageClientScheduled {
		t.Fatalf("scheduled client stage = %q, want %q", got, StageClientScheduled)
	}

	cand.ClientInterviews[0].Status = database.InterviewCompleted
	cand.ClientInterviews[0].Result = database.ResultSelected
	if got := DeriveStage(cand); got != StageClientCompleted {
		t.Fatalf("completed client stage = %q, want %q", got, StageClientCompleted)
	}

	// A higher level interview supersedes the completed one.
	cand.ClientInterviews = append(cand.ClientInterviews, database.ClientInterview{
		Level: 2, ScheduledAt: day(7), Status: database.InterviewScheduled,
	})
	if got := DeriveStage(cand); got != StageClientScheduled {
		t.Fatalf("re-interview stage = %q, want %q", got, StageClientScheduled)
	}

	cand.ClientInterviews[1].Status = database.InterviewCompleted
	cand.ClientInterviews[1].Result = database.ResultSelected
	cand.ClientInterviews[1].DeployedStatus = true
	if got := DeriveStage(cand); got != StageDeployed {
		t.Fatalf("deployed stage = %q, want %q", got, StageDeployed)
	}
}

func TestDeriveStageTerminalWinsOverEverything(t *testing.T) {
	cand := database.Candidate{
		EmpID:         "E100",
		TerminalState: database.TerminalWithdrawn,
		MockInterviews: []database.MockInterview{
			{ScheduledAt: day(0), Status: database.InterviewCompleted, SentToSales: true},
		},
	}
	if got := DeriveStage(cand); got != StageWithdrawn {
		t.Fatalf("withdrawn stage = %q, want %q", got, StageWithdrawn)
	}

	cand.TerminalState = database.TerminalRejected
	if got := DeriveStage(cand); got != StageRejected {
		t.Fatalf("rejected stage = %q, want %q", got, StageRejected)
	}
}

func TestCurrentClientInterviewTieBreak(t *testing.T) {
	interviews := []database.ClientInterview{
		{Level: 2, ScheduledAt: day(1), ClientName: "older"},
		{Level: 2, ScheduledAt: day(5), ClientName: "newer"},
		{Level: 1, ScheduledAt: day(9), ClientName: "lower"},
	}
	current := CurrentClientInterview(interviews)
	if current == nil {
		t.Fatal("expected a current interview")
	}
	if current.ClientName != "newer" {
		t.Fatalf("current interview = %q, want the most recent at the highest level", current.ClientName)
	}
}

func TestLevel(t *testing.T) {
	cand := database.Candidate{}
	if Level(cand) != nil {
		t.Fatal("level before any client interview should be nil")
	}

	cand.ClientInterviews = []database.ClientInterview{
		{Level: 1, ScheduledAt: day(0)},
		{Level: 3, ScheduledAt: day(2)},
	}
	level := Level(cand)
	if level == nil || *level != 3 {
		t.Fatalf("level = %v, want 3", level)
	}
}

func TestStageRankIsMonotonic(t *testing.T) {
	order := []Stage{
		StageRegistered, StageResumeSubmitted, StageMockScheduled,
		StageMockCompleted, StageSalesQueue, StageClientScheduled,
		StageClientCompleted, StageDeployed,
	}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("rank of %q (%d) not above %q (%d)",
				order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}
	for _, terminal := range []Stage{StageDeployed, StageRejected, StageWithdrawn} {
		if !terminal.Terminal() {
			t.Errorf("%q should be terminal", terminal)
		}
	}
}
