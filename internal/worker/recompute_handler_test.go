package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pipetrack/internal/database"
	"pipetrack/internal/errcode"
	"pipetrack/internal/tasks"
	"pipetrack/internal/views"
)

func newTestHandler(t *testing.T) (*RecomputeHandler, *gorm.DB, *miniredis.Miniredis) {
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

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dispatcher := views.NewDispatcher(client, 6)
	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRecomputeHandler(db, dispatcher, client, testLogger), db, mr
}

func intPtr(v int) *int { return &v }

func seedForwarded(t *testing.T, db *gorm.DB, empID string, tech, comm int) {
	t.Helper()
	cand := database.Candidate{EmpID: empID, Technology: "Java", ResourceType: "OM"}
	if err := db.Create(&cand).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	mi := database.MockInterview{
		CandidateID:        cand.ID,
		ScheduledAt:        time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
		Status:             database.InterviewCompleted,
		TechnicalScore:     intPtr(tech),
		CommunicationScore: intPtr(comm),
		SentToSales:        true,
	}
	if err := db.Create(&mi).Error; err != nil {
		t.Fatalf("seed mock interview: %v", err)
	}
}

func TestProcessTaskRebuildsViews(t *testing.T) {
	h, db, mr := newTestHandler(t)
	ctx := context.Background()

	seedForwarded(t, db, "E100", 8, 8)
	seedForwarded(t, db, "E200", 3, 3)
	mr.SAdd(views.KeySalesQueue, "GHOST")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	pubsub := client.Subscribe(ctx, statusChannel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	task, err := tasks.NewViewsRecomputeTask("corr-1")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := h.ProcessTask(ctx, task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	queue, err := client.SMembers(ctx, views.KeySalesQueue).Result()
	if err != nil {
		t.Fatalf("read sales queue: %v", err)
	}
	if len(queue) != 2 {
		t.Errorf("sales queue = %v, want both candidates and no ghost", queue)
	}
	for _, member := range queue {
		if member == "GHOST" {
			t.Error("ghost member survived the recompute")
		}
	}

	msg, err := pubsub.ReceiveTimeout(ctx, time.Second)
	if err != nil {
		t.Fatalf("receive status: %v", err)
	}
	payload, ok := msg.(*redis.Message)
	if !ok {
		t.Fatalf("unexpected pubsub message %T", msg)
	}
	var status RecomputeStatusMessage
	if err := json.Unmarshal([]byte(payload.Payload), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "completed" || status.Candidates != 2 || status.ErrorCode != errcode.OK {
		t.Errorf("status = %+v, want completed with 2 candidates", status)
	}
	if status.CorrelationID != "corr-1" {
		t.Errorf("correlation id = %q, want corr-1", status.CorrelationID)
	}
}

func TestProcessTaskRejectsBadPayload(t *testing.T) {
	h, _, _ := newTestHandler(t)

	task := asynq.NewTask(tasks.TypeViewsRecompute, []byte("{not json"))
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected an error for a malformed payload")
	}
}
