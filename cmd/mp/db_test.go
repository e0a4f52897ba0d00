package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kestrane/milepost/internal/models"
)

func TestDBInit_Sqlite(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCmd(t, "db", "init", "-c", cfgPath)
	if err != nil {
		t.Fatalf("db init failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, `marketplace "testmart"`) {
		t.Errorf("output missing marketplace: %s", out)
	}
	if !strings.Contains(out, "Migrated 3 tables") {
		t.Errorf("output missing migration count: %s", out)
	}

	// All tables exist after init.
	gormDB := openConfiguredDB(t, cfgPath)
	for _, model := range []interface{}{&models.Job{}, &models.Milestone{}, &models.EscrowEvent{}} {
		if !gormDB.Migrator().HasTable(model) {
			t.Errorf("missing table for %T", model)
		}
	}
}

func TestDBInit_MissingConfig(t *testing.T) {
	_, err := runCmd(t, "db", "init", "-c", "/nonexistent/milepost.yaml")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want load config", err.Error())
	}
}

func TestDBReset_SqliteWithYes(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCmd(t, "db", "init", "-c", cfgPath); err != nil {
		t.Fatalf("db init: %v", err)
	}

	// Seed a row, then reset and verify it is gone.
	gormDB := openConfiguredDB(t, cfgPath)
	if err := gormDB.Create(&models.Job{ID: "j-1", Title: "t", BudgetCents: 100, EmployerID: "e"}).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	out, err := runCmd(t, "db", "reset", "-c", cfgPath, "--yes")
	if err != nil {
		t.Fatalf("db reset failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "reset successfully") {
		t.Errorf("output = %s", out)
	}

	var count int64
	if err := openConfiguredDB(t, cfgPath).Model(&models.Job{}).Count(&count).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if count != 0 {
		t.Errorf("jobs after reset = %d, want 0", count)
	}
}

func TestDBReset_AbortsWithoutConfirmation(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCmd(t, "db", "init", "-c", cfgPath); err != nil {
		t.Fatalf("db init: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader("no\n"))
	cmd.SetArgs([]string{"db", "reset", "-c", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db reset: %v", err)
	}
	if !strings.Contains(buf.String(), "Aborted.") {
		t.Errorf("output = %s, want Aborted.", buf.String())
	}
}
