package db

import (
	"strings"
	"testing"

	"github.com/kestrane/milepost/internal/config"
	"github.com/kestrane/milepost/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "default local",
			host:     "127.0.0.1",
			port:     3306,
			database: "milepost_acme",
			want:     "root@tcp(127.0.0.1:3306)/milepost_acme?parseTime=true",
		},
		{
			name:     "custom host and port",
			host:     "10.0.0.5",
			port:     3307,
			database: "milepost_bazaar",
			want:     "root@tcp(10.0.0.5:3307)/milepost_bazaar?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_ParseTimeFlag(t *testing.T) {
	dsn := DSN("localhost", 3306, "test")
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
}

func TestConnect_Sqlite(t *testing.T) {
	gormDB, err := Connect(config.DBConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	// Round-trip a row through every table.
	fid := "f-1"
	job := models.Job{ID: "j-1", Title: "t", BudgetCents: 100, EmployerID: "e-1", FreelancerID: &fid}
	if err := gormDB.Create(&job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}
	m := models.Milestone{ID: "m-1", JobID: "j-1", Position: 1, Title: "t", Percentage: 100, AmountCents: 100}
	if err := gormDB.Create(&m).Error; err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	ev := models.EscrowEvent{JobID: "j-1", ActorID: "e-1", Action: models.EventPlanCreated}
	if err := gormDB.Create(&ev).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DBConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q, want unsupported driver", err.Error())
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 3 {
		t.Errorf("len(AllModels()) = %d, want 3", got)
	}
}
