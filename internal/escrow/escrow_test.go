package escrow

import (
	"errors"
	"testing"
	"time"

	"github.com/kestrane/milepost/internal/lifecycle"
	"github.com/kestrane/milepost/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Job{}, &models.Milestone{}, &models.EscrowEvent{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func seedJob(t *testing.T, db *gorm.DB, budgetCents int64, amounts ...int64) (*models.Job, []models.Milestone) {
	t.Helper()
	fid := "freelancer-1"
	job := models.Job{
		ID:           "job-1",
		Title:        "Marketplace build",
		BudgetCents:  budgetCents,
		EmployerID:   "employer-1",
		FreelancerID: &fid,
		Status:       models.JobInProgress,
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	ms := make([]models.Milestone, len(amounts))
	for i, amt := range amounts {
		ms[i] = models.Milestone{
			ID:          job.ID + "-m" + string(rune('1'+i)),
			JobID:       job.ID,
			Position:    i + 1,
			Title:       "tranche",
			Percentage:  100 / len(amounts),
			AmountCents: amt,
			Status:      string(lifecycle.StatusCompleted),
		}
		if err := db.Create(&ms[i]).Error; err != nil {
			t.Fatalf("create milestone: %v", err)
		}
	}
	return &job, ms
}

func TestLedger_EmptyJob(t *testing.T) {
	db := openTestDB(t)
	job, _ := seedJob(t, db, 100000)

	snap, err := Ledger(db, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.TotalBudgetCents != 100000 || snap.ReleasedCents != 0 || snap.BalanceCents != 100000 {
		t.Errorf("snapshot = %+v, want 100000/0/100000", snap)
	}
}

func TestRelease_HappyPath(t *testing.T) {
	db := openTestDB(t)
	job, ms := seedJob(t, db, 100000, 25000, 25000, 25000, 25000)

	var last Snapshot
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := range ms {
			snap, err := Release(tx, job, &ms[i], "looks good")
			if err != nil {
				return err
			}
			if snap.ReleasedCents+snap.BalanceCents != snap.TotalBudgetCents {
				t.Errorf("invariant broken: %+v", snap)
			}
			last = snap
		}
		return nil
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	if last.ReleasedCents != 100000 || last.BalanceCents != 0 {
		t.Errorf("final snapshot = %+v, want released=100000 balance=0", last)
	}
	if ms[0].ApprovedAt == nil {
		t.Error("ApprovedAt not set on released milestone")
	}
	if ms[0].Status != string(lifecycle.StatusApproved) {
		t.Errorf("Status = %q, want approved", ms[0].Status)
	}
}

func TestRelease_Twice_AlreadyReleased(t *testing.T) {
	db := openTestDB(t)
	job, ms := seedJob(t, db, 50000, 50000)

	if _, err := Release(db, job, &ms[0], ""); err != nil {
		t.Fatalf("first release: %v", err)
	}

	_, err := Release(db, job, &ms[0], "")
	if !errors.Is(err, ErrAlreadyReleased) {
		t.Errorf("second release error = %v, want ErrAlreadyReleased", err)
	}

	// Balance changed exactly once.
	snap, err := Ledger(db, job)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if snap.ReleasedCents != 50000 {
		t.Errorf("ReleasedCents = %d, want 50000", snap.ReleasedCents)
	}
}

func TestRelease_WrongStatus_InvalidTransition(t *testing.T) {
	db := openTestDB(t)
	job, ms := seedJob(t, db, 50000, 50000)

	if err := db.Model(&models.Milestone{}).Where("id = ?", ms[0].ID).
		Update("status", string(lifecycle.StatusPending)).Error; err != nil {
		t.Fatalf("set pending: %v", err)
	}

	_, err := Release(db, job, &ms[0], "")
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}

	snap, lerr := Ledger(db, job)
	if lerr != nil {
		t.Fatalf("ledger: %v", lerr)
	}
	if snap.ReleasedCents != 0 {
		t.Errorf("ReleasedCents = %d, want 0 (ledger unchanged)", snap.ReleasedCents)
	}
}

func TestRelease_Overrun(t *testing.T) {
	db := openTestDB(t)
	// Tampered amounts: two milestones whose cached amounts exceed budget.
	job, ms := seedJob(t, db, 50000, 30000, 30000)

	if _, err := Release(db, job, &ms[0], ""); err != nil {
		t.Fatalf("first release: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, rerr := Release(tx, job, &ms[1], "")
		return rerr
	})
	if !errors.Is(err, ErrLedgerOverrun) {
		t.Fatalf("error = %v, want ErrLedgerOverrun", err)
	}

	// The failing transaction rolled back: second milestone still completed.
	var m models.Milestone
	if err := db.Where("id = ?", ms[1].ID).First(&m).Error; err != nil {
		t.Fatalf("reload milestone: %v", err)
	}
	if m.Status != string(lifecycle.StatusCompleted) {
		t.Errorf("milestone status = %q, want completed after rollback", m.Status)
	}
}

func TestLedger_DetectsExistingOverrun(t *testing.T) {
	db := openTestDB(t)
	job, ms := seedJob(t, db, 10000, 8000, 8000)

	// Force both approved directly, bypassing Release.
	for _, m := range ms {
		if err := db.Model(&models.Milestone{}).Where("id = ?", m.ID).
			Updates(map[string]interface{}{"status": string(lifecycle.StatusApproved), "approved_at": time.Now()}).Error; err != nil {
			t.Fatalf("force approve: %v", err)
		}
	}

	_, err := Ledger(db, job)
	if !errors.Is(err, ErrLedgerOverrun) {
		t.Errorf("error = %v, want ErrLedgerOverrun", err)
	}
}

func TestRelease_ReleasedIsMonotonic(t *testing.T) {
	db := openTestDB(t)
	job, ms := seedJob(t, db, 90000, 30000, 30000, 30000)

	prev := int64(0)
	for i := range ms {
		snap, err := Release(db, job, &ms[i], "")
		if err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
		if snap.ReleasedCents < prev {
			t.Errorf("released decreased: %d -> %d", prev, snap.ReleasedCents)
		}
		prev = snap.ReleasedCents
	}
}
