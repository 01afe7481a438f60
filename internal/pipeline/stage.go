package pipeline

import (
	"pipetrack/internal/database"
)

// Stage is the derived pipeline position of a candidate. It is computed
// from the candidate's interview sets on every read and never persisted,
// so the records cannot desynchronize from the stage they imply.
type Stage string

const (
	StageRegistered      Stage = "registered"
	StageResumeSubmitted Stage = "resume_submitted"
	StageMockScheduled   Stage = "mock_scheduled"
	StageMockCompleted   Stage = "mock_completed"
	StageSalesQueue      Stage = "sales_queue"
	StageClientScheduled Stage = "client_scheduled"
	StageClientCompleted Stage = "client_completed"
	StageDeployed        Stage = "deployed"
	StageRejected        Stage = "rejected"
	StageWithdrawn       Stage = "withdrawn"
)

// stageRank orders stages along the pipeline. Terminal states sit past
// every live stage.
var stageRank = map[Stage]int{
	StageRegistered:      0,
	StageResumeSubmitted: 1,
	StageMockScheduled:   2,
	StageMockCompleted:   3,
	StageSalesQueue:      4,
	StageClientScheduled: 5,
	StageClientCompleted: 6,
	StageDeployed:        7,
	StageRejected:        7,
	StageWithdrawn:       7,
}

// Rank returns the pipeline ordering index of the stage.
func (s Stage) Rank() int { return stageRank[s] }

// Terminal reports whether the stage ends the pipeline.
func (s Stage) Terminal() bool {
	return s == StageDeployed || s == StageRejected || s == StageWithdrawn
}

// DeriveStage computes the candidate's stage from its interview sets.
func DeriveStage(cand database.Candidate) Stage {
	switch cand.TerminalState {
	case database.TerminalRejected:
		return StageRejected
	case database.TerminalWithdrawn:
		return StageWithdrawn
	}

	for _, ci := range cand.ClientInterviews {
		if ci.DeployedStatus && ci.Result == database.ResultSelected {
			return StageDeployed
		}
	}

	if current := CurrentClientInterview(cand.ClientInterviews); current != nil {
		if current.Status == database.InterviewCompleted {
			return StageClientCompleted
		}
		return StageClientScheduled
	}

	anyScheduled := false
	anyCompleted := false
	for _, mi := range cand.MockInterviews {
		if mi.SentToSales {
			return StageSalesQueue
		}
		switch mi.Status {
		case database.InterviewScheduled:
			anyScheduled = true
		case database.InterviewCompleted:
			anyCompleted = true
		}
	}
	if anyScheduled {
		return StageMockScheduled
	}
	if anyCompleted {
		return StageMockCompleted
	}

	if cand.ResumeRef != "" {
		return StageResumeSubmitted
	}
	return StageRegistered
}

// CurrentClientInterview picks the interview that represents the candidate
// for display and aggregation: highest level, ties broken by the most
// recent date. Returns nil when there are none.
func CurrentClientInterview(interviews []database.ClientInterview) *database.ClientInterview {
	var current *database.ClientInterview
	for i := range interviews {
		ci := &interviews[i]
		if current == nil {
			current = ci
			continue
		}
		if ci.Level > current.Level {
			current = ci
			continue
		}
		if ci.Level == current.Level && ci.ScheduledAt.After(current.ScheduledAt) {
			current = ci
		}
	}
	return current
}

// Level returns the candidate's reached client-interview level, or nil
// before any client interview exists.
func Level(cand database.Candidate) *int {
	current := CurrentClientInterview(cand.ClientInterviews)
	if current == nil {
		return nil
	}
	level := current.Level
	return &level
}

// LatestMock returns the most recently scheduled mock interview, or nil.
func LatestMock(mocks []database.MockInterview) *database.MockInterview {
	var latest *database.MockInterview
	for i := range mocks {
		mi := &mocks[i]
		if latest == nil || mi.ScheduledAt.After(latest.ScheduledAt) {
			latest = mi
		}
	}
	return latest
}
