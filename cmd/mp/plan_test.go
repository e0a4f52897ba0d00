package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write plan file: %v", err)
	}
	return path
}

// setupAssignedJob initializes a store and returns (configPath, jobID)
// for a job with budget 1000.00 assigned to free-1.
func setupAssignedJob(t *testing.T) (string, string) {
	t.Helper()
	cfgPath := writeTestConfig(t)
	if _, err := runCmd(t, "db", "init", "-c", cfgPath); err != nil {
		t.Fatalf("db init: %v", err)
	}
	out, err := runCmd(t, "job", "add", "-c", cfgPath,
		"--title", "Storefront build", "--budget", "1000.00", "--employer", "emp-1")
	if err != nil {
		t.Fatalf("job add: %v", err)
	}
	jobID := jobIDFromOutput(t, out)
	if _, err := runCmd(t, "job", "assign", "-c", cfgPath, jobID, "free-1"); err != nil {
		t.Fatalf("job assign: %v", err)
	}
	return cfgPath, jobID
}

func TestPlanCreateAndShow(t *testing.T) {
	cfgPath, jobID := setupAssignedJob(t)
	planPath := writePlanFile(t, `milestones:
  - title: Design
    percentage: 25
    due_date: 2026-09-15
  - title: Build
    description: Catalog and checkout
    percentage: 50
  - title: Launch
    percentage: 25
`)

	out, err := runCmd(t, "plan", "create", "-c", cfgPath, "-f", planPath, "-a", "emp-1", jobID)
	if err != nil {
		t.Fatalf("plan create failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Created plan with 3 milestones") {
		t.Errorf("output = %s", out)
	}
	if !strings.Contains(out, "USD 500.00") {
		t.Errorf("output missing 50%% amount: %s", out)
	}
	if !strings.Contains(out, "2026-09-15") {
		t.Errorf("output missing due date: %s", out)
	}

	out, err = runCmd(t, "plan", "show", "-c", cfgPath, jobID)
	if err != nil {
		t.Fatalf("plan show failed: %v", err)
	}
	for _, title := range []string{"Design", "Build", "Launch"} {
		if !strings.Contains(out, title) {
			t.Errorf("show output missing %q: %s", title, out)
		}
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("show output missing status: %s", out)
	}
}

func TestPlanCreate_OnlyEmployer(t *testing.T) {
	cfgPath, jobID := setupAssignedJob(t)
	planPath := writePlanFile(t, "milestones:\n  - title: All\n    percentage: 100\n")

	_, err := runCmd(t, "plan", "create", "-c", cfgPath, "-f", planPath, "-a", "free-1", jobID)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "only the employer") {
		t.Errorf("error = %q, want only the employer", err.Error())
	}
}

func TestPlanCreate_RejectsBadPercentages(t *testing.T) {
	cfgPath, jobID := setupAssignedJob(t)
	planPath := writePlanFile(t, `milestones:
  - title: Half
    percentage: 50
  - title: Too much
    percentage: 60
`)

	_, err := runCmd(t, "plan", "create", "-c", cfgPath, "-f", planPath, "-a", "emp-1", jobID)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid milestone plan") {
		t.Errorf("error = %q, want invalid milestone plan", err.Error())
	}
}

func TestPlanCreate_RejectsBadDueDate(t *testing.T) {
	cfgPath, jobID := setupAssignedJob(t)
	planPath := writePlanFile(t, `milestones:
  - title: All
    percentage: 100
    due_date: 15/09/2026
`)

	_, err := runCmd(t, "plan", "create", "-c", cfgPath, "-f", planPath, "-a", "emp-1", jobID)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid due_date") {
		t.Errorf("error = %q, want invalid due_date", err.Error())
	}
}

func TestPlanCreate_MissingFile(t *testing.T) {
	cfgPath, jobID := setupAssignedJob(t)

	_, err := runCmd(t, "plan", "create", "-c", cfgPath, "-f", "/nonexistent/plan.yaml", "-a", "emp-1", jobID)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "read plan file") {
		t.Errorf("error = %q, want read plan file", err.Error())
	}
}

func TestPlanShow_EmptyPlan(t *testing.T) {
	cfgPath, jobID := setupAssignedJob(t)

	out, err := runCmd(t, "plan", "show", "-c", cfgPath, jobID)
	if err != nil {
		t.Fatalf("plan show failed: %v", err)
	}
	if !strings.Contains(out, "no milestone plan") {
		t.Errorf("output = %s", out)
	}
}
