package progress_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/prosodia/prosodia-backend/internal/data/repos/progress"
	"github.com/prosodia/prosodia-backend/internal/data/repos/testutil"
	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
)

func TestProgressRecordAttempt(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := progress.NewUserExerciseProgressRepo(db, testutil.Logger(t))

	userID := uuid.New()
	testutil.SeedExercise(t, ctx, tx, "fonema_r_1")

	if _, err := repo.GetByUserAndExercise(ctx, tx, userID, "fonema_r_1"); !apierr.IsNotFound(err) {
		t.Fatalf("expected not found before first attempt, got %v", err)
	}

	row, err := repo.RecordAttempt(ctx, tx, userID, "fonema_r_1", 55)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if row.Status != types.ProgressInProgress || row.AttemptsCount != 1 {
		t.Fatalf("unexpected state after first attempt: %+v", row)
	}
	if row.BestScore == nil || *row.BestScore != 55 {
		t.Fatalf("best score not recorded: %+v", row.BestScore)
	}

	row, err = repo.RecordAttempt(ctx, tx, userID, "fonema_r_1", 40)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if *row.BestScore != 55 {
		t.Fatalf("lower score replaced best: %v", *row.BestScore)
	}
	if row.AttemptsCount != 2 {
		t.Fatalf("attempts not counted: %d", row.AttemptsCount)
	}

	row, err = repo.RecordAttempt(ctx, tx, userID, "fonema_r_1", 91)
	if err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if row.Status != types.ProgressCompleted || row.CompletedAt == nil {
		t.Fatalf("expected completion at 91, got %+v", row)
	}
	if *row.BestScore != 91 {
		t.Fatalf("best score not raised: %v", *row.BestScore)
	}
}

func TestProgressListByUser(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := progress.NewUserExerciseProgressRepo(db, testutil.Logger(t))

	userID := uuid.New()
	otherID := uuid.New()
	for _, key := range []string{"fonema_b_1", "fonema_a_1"} {
		testutil.SeedExercise(t, ctx, tx, key)
		if _, err := repo.RecordAttempt(ctx, tx, userID, key, 60); err != nil {
			t.Fatalf("attempt %s: %v", key, err)
		}
	}
	testutil.SeedExercise(t, ctx, tx, "fonema_c_1")
	if _, err := repo.RecordAttempt(ctx, tx, otherID, "fonema_c_1", 60); err != nil {
		t.Fatalf("attempt other user: %v", err)
	}

	rows, err := repo.ListByUser(ctx, tx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 || rows[0].ExerciseID != "fonema_a_1" || rows[1].ExerciseID != "fonema_b_1" {
		t.Fatalf("unexpected listing: %+v", rows)
	}
}
