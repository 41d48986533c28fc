//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
)

func TestIngestionStateUpsert(t *testing.T) {
	cleanup(t)
	repo := NewIngestionStateRepo(testPool)
	ctx := context.Background()

	st := &model.IngestionState{
		Kind:      model.JobKindLectureIngestion,
		CourseID:  7,
		TargetID:  42,
		Status:    model.IngestionInProgress,
		UpdatedAt: time.Now(),
	}
	if err := repo.SetStatus(ctx, nil, st); err != nil {
		t.Fatal(err)
	}

	st.Status = model.IngestionDone
	if err := repo.SetStatus(ctx, nil, st); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetStatus(ctx, nil, model.JobKindLectureIngestion, 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.IngestionDone {
		t.Fatalf("status %s, want DONE after upsert", got.Status)
	}

	// Same target id under a different kind is a distinct state.
	if _, err := repo.GetStatus(ctx, nil, model.JobKindFaqIngestion, 42); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other kind, got %v", err)
	}
}

func TestTranscriptionUpsert(t *testing.T) {
	cleanup(t)
	repo := NewIngestionStateRepo(testPool)
	ctx := context.Background()

	tr := &model.Transcription{
		LectureUnitID: 42,
		Language:      "en",
		Segments: []model.TranscriptionSegment{
			{StartTime: 0, EndTime: 4.5, Text: "welcome", SlideNum: 1},
		},
	}
	if err := repo.SaveTranscription(ctx, nil, tr); err != nil {
		t.Fatal(err)
	}
	// Re-ingestion overwrites.
	tr.Segments[0].Text = "welcome back"
	if err := repo.SaveTranscription(ctx, nil, tr); err != nil {
		t.Fatal(err)
	}
}

func TestSubmissionLatestOrder(t *testing.T) {
	cleanup(t)
	repo := NewSubmissionRepo(testPool)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, score := range []float64{10, 20, 30} {
		_, err := testPool.Exec(ctx, `
INSERT INTO submissions (exercise_id, user_id, score, successful, submitted_at)
VALUES ($1,$2,$3,$4,$5);`, int64(11), int64(1), score, true, base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
	}

	subs, err := repo.Latest(ctx, nil, 11, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	if subs[0].Score != 30 || subs[1].Score != 20 {
		t.Fatalf("submissions not newest first: %+v", subs)
	}
}

func TestTokenUsageSum(t *testing.T) {
	cleanup(t)
	repo := NewTokenUsageRepo(testPool)
	ctx := context.Background()

	usages := []model.TokenUsage{
		{JobToken: "t1", UserID: 1, Model: "gpt-4o", Pipeline: "course-chat", InputTokens: 100, OutputTokens: 40, RecordedAt: time.Now()},
		{JobToken: "t1", UserID: 1, Model: "gpt-4o", Pipeline: "course-chat", InputTokens: 50, OutputTokens: 10, RecordedAt: time.Now()},
		{JobToken: "t2", UserID: 2, Model: "gpt-4o", Pipeline: "course-chat", InputTokens: 999, OutputTokens: 999, RecordedAt: time.Now()},
	}
	if err := repo.SaveAll(ctx, nil, usages); err != nil {
		t.Fatal(err)
	}

	in, out, err := repo.SumForUser(ctx, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if in != 150 || out != 50 {
		t.Fatalf("sum (%d,%d), want (150,50)", in, out)
	}
}
