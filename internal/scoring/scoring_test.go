package scoring

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pipetrack/internal/database"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewService(db), db
}

func intPtr(v int) *int { return &v }

func seedScoredCandidate(t *testing.T, db *gorm.DB, empID, tech string, scores ...[2]int) {
	t.Helper()
	cand := database.Candidate{EmpID: empID, Name: "c-" + empID, Technology: tech, ResourceType: "OM"}
	if err := db.Create(&cand).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	base := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	for i, pair := range scores {
		mi := database.MockInterview{
			CandidateID:        cand.ID,
			ScheduledAt:        base.AddDate(0, 0, i),
			Status:             database.InterviewCompleted,
			TechnicalScore:     intPtr(pair[0]),
			CommunicationScore: intPtr(pair[1]),
		}
		if err := db.Create(&mi).Error; err != nil {
			t.Fatalf("seed mock interview: %v", err)
		}
	}
}

func TestLeaderboardOrderingAndTieBreak(t *testing.T) {
	s, db := newTestService(t)

	seedScoredCandidate(t, db, "E300", "Java", [2]int{5, 5})
	seedScoredCandidate(t, db, "E100", "Java", [2]int{8, 8})
	seedScoredCandidate(t, db, "E200", "Python", [2]int{8, 8})
	// No completed mock, must not appear.
	cand := database.Candidate{EmpID: "E400", Technology: "Java", ResourceType: "OM"}
	if err := db.Create(&cand).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	rows, err := s.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("leaderboard rows = %d, want 3", len(rows))
	}

	// 16 ties break by ascending employee id.
	wantOrder := []string{"E100", "E200", "E300"}
	for i, want := range wantOrder {
		if rows[i].EmployeeID != want {
			t.Errorf("row %d = %s, want %s", i, rows[i].EmployeeID, want)
		}
	}
	if rows[0].TotalRating != 16 {
		t.Errorf("top rating = %d, want 16", rows[0].TotalRating)
	}
	if rows[0].ScorePercentage != 80 {
		t.Errorf("top percentage = %v, want 80", rows[0].ScorePercentage)
	}
}

func TestLeaderboardUsesLatestCompletedMock(t *testing.T) {
	s, db := newTestService(t)
	seedScoredCandidate(t, db, "E100", "Java", [2]int{9, 9}, [2]int{4, 4})

	rows, err := s.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].TotalRating != 8 {
		t.Errorf("rating = %d, want the latest mock's 8", rows[0].TotalRating)
	}
}

func TestLeaderboardTreatsMissingScoresAsZero(t *testing.T) {
	s, db := newTestService(t)

	cand := database.Candidate{EmpID: "E100", Technology: "Java", ResourceType: "OM"}
	if err := db.Create(&cand).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	mi := database.MockInterview{
		CandidateID:    cand.ID,
		ScheduledAt:    time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
		Status:         database.InterviewCompleted,
		TechnicalScore: intPtr(7),
	}
	if err := db.Create(&mi).Error; err != nil {
		t.Fatalf("seed mock interview: %v", err)
	}

	rows, err := s.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 || rows[0].TotalRating != 7 {
		t.Fatalf("rows = %+v, want one row rating 7", rows)
	}
}

func TestTotalRating(t *testing.T) {
	s, db := newTestService(t)
	seedScoredCandidate(t, db, "E100", "Java", [2]int{6, 7})

	rating, err := s.TotalRating(context.Background(), "E100")
	if err != nil {
		t.Fatalf("total rating: %v", err)
	}
	if rating != 13 {
		t.Errorf("rating = %d, want 13", rating)
	}
}

func TestAverages(t *testing.T) {
	s, db := newTestService(t)
	seedScoredCandidate(t, db, "E100", "Java", [2]int{8, 6})
	seedScoredCandidate(t, db, "E200", "Java", [2]int{4, 8})
	seedScoredCandidate(t, db, "E300", "Python", [2]int{10, 10})

	ctx := context.Background()
	java, err := s.Averages(ctx, "Java", "OM")
	if err != nil {
		t.Fatalf("averages: %v", err)
	}
	if java.Completed != 2 {
		t.Fatalf("completed = %d, want 2", java.Completed)
	}
	if java.AvgTechnical != 6 || java.AvgCommunication != 7 {
		t.Errorf("averages = %v/%v, want 6/7", java.AvgTechnical, java.AvgCommunication)
	}

	all, err := s.Averages(ctx, "all", "all")
	if err != nil {
		t.Fatalf("averages all: %v", err)
	}
	if all.Completed != 3 {
		t.Errorf("completed all = %d, want 3", all.Completed)
	}
}

func TestAveragesEmptyGroup(t *testing.T) {
	s, _ := newTestService(t)

	out, err := s.Averages(context.Background(), "DevOps", "TCT1")
	if err != nil {
		t.Fatalf("averages: %v", err)
	}
	if out.Completed != 0 || out.AvgTechnical != 0 || out.AvgCommunication != 0 {
		t.Errorf("empty group = %+v, want zeros", out)
	}
}
