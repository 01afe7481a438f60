// Package scoring computes read-only aggregates over completed mock
// interviews: the leaderboard and per-group score averages. It tolerates
// legacy rows with missing scores by treating them as zero.
package scoring

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"pipetrack/internal/database"
	"pipetrack/internal/pipeline"
)

// maxTotalRating is the highest reachable totalRating (two 0..10 scores).
const maxTotalRating = 20

// PerformanceRow is one leaderboard entry.
type PerformanceRow struct {
	EmployeeID      string  `json:"employeeId"`
	EmployeeName    string  `json:"employeeName"`
	Technology      string  `json:"technology"`
	ResourceType    string  `json:"resourceType"`
	TotalRating     int     `json:"totalRating"`
	ScorePercentage float64 `json:"scorePercentage"`
}

// GroupAverages holds the mean scores of a technology/resource-type group.
type GroupAverages struct {
	Technology       string  `json:"technology,omitempty"`
	ResourceType     string  `json:"resourceType,omitempty"`
	AvgTechnical     float64 `json:"avgTechnical"`
	AvgCommunication float64 `json:"avgCommunication"`
	Completed        int     `json:"completed"`
}

// Service computes aggregates straight from the store; it holds no state
// of its own, so repeated calls over the same rows are deterministic.
type Service struct {
	db *gorm.DB
}

// NewService builds a scoring service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Leaderboard ranks candidates by the total rating of their latest
// completed mock interview, descending; ties break by ascending employee
// id so the ordering is stable across calls.
func (s *Service) Leaderboard(ctx context.Context) ([]PerformanceRow, error) {
	var candidates []database.Candidate
	if err := s.db.WithContext(ctx).
		Preload("MockInterviews", "status = ?", database.InterviewCompleted).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	rows := make([]PerformanceRow, 0, len(candidates))
	for _, cand := range candidates {
		latest := pipeline.LatestMock(cand.MockInterviews)
		if latest == nil {
			continue
		}

		rating := scoreOrZero(latest.TechnicalScore) + scoreOrZero(latest.CommunicationScore)
		rows = append(rows, PerformanceRow{
			EmployeeID:      cand.EmpID,
			EmployeeName:    cand.Name,
			Technology:      cand.Technology,
			ResourceType:    cand.ResourceType,
			TotalRating:     rating,
			ScorePercentage: percentage(rating),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalRating != rows[j].TotalRating {
			return rows[i].TotalRating > rows[j].TotalRating
		}
		return rows[i].EmployeeID < rows[j].EmployeeID
	})
	return rows, nil
}

// TotalRating sums the latest completed mock's scores for one candidate,
// within 0..20. Zero when no completed mock exists.
func (s *Service) TotalRating(ctx context.Context, empID string) (int, error) {
	var cand database.Candidate
	if err := s.db.WithContext(ctx).
		Preload("MockInterviews", "status = ?", database.InterviewCompleted).
		Where("emp_id = ?", empID).
		First(&cand).Error; err != nil {
		return 0, fmt.Errorf("load candidate: %w", err)
	}

	latest := pipeline.LatestMock(cand.MockInterviews)
	if latest == nil {
		return 0, nil
	}
	return scoreOrZero(latest.TechnicalScore) + scoreOrZero(latest.CommunicationScore), nil
}

// Averages computes mean technical and communication scores across all
// completed mock interviews, optionally filtered by technology and
// resource type. An empty group yields zeros rather than an error.
func (s *Service) Averages(ctx context.Context, technology, resourceType string) (GroupAverages, error) {
	query := s.db.WithContext(ctx).
		Model(&database.MockInterview{}).
		Joins("JOIN candidates ON candidates.id = mock_interviews.candidate_id").
		Where("mock_interviews.status = ?", database.InterviewCompleted)
	if technology != "" && technology != "all" {
		query = query.Where("candidates.technology = ?", technology)
	}
	if resourceType != "" && resourceType != "all" {
		query = query.Where("candidates.resource_type = ?", resourceType)
	}

	var interviews []database.MockInterview
	if err := query.Find(&interviews).Error; err != nil {
		return GroupAverages{}, fmt.Errorf("load completed mock interviews: %w", err)
	}

	out := GroupAverages{
		Technology:   technology,
		ResourceType: resourceType,
		Completed:    len(interviews),
	}
	if len(interviews) == 0 {
		return out, nil
	}

	var techSum, commSum int
	for _, mi := range interviews {
		techSum += scoreOrZero(mi.TechnicalScore)
		commSum += scoreOrZero(mi.CommunicationScore)
	}
	out.AvgTechnical = float64(techSum) / float64(len(interviews))
	out.AvgCommunication = float64(commSum) / float64(len(interviews))
	return out, nil
}

func scoreOrZero(score *int) int {
	if score == nil {
		return 0
	}
	return *score
}

func percentage(rating int) float64 {
	pct := float64(rating) / maxTotalRating * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
