package airwayvision

import (
	"context"
	"errors"
	"testing"

	"github.com/russellmiller49/AirwayVision/airway"
	"github.com/russellmiller49/AirwayVision/internal/catalog"
)

func TestLoadModel_CSV(t *testing.T) {
	w := newTestWorkstation(t)

	if err := w.LoadModel(context.Background(), "adult_airway"); err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	snap := w.Snapshot()
	if snap.ModelID != "adult_airway" || snap.ModelName != "Adult Airway" {
		t.Errorf("unexpected model identity: %q %q", snap.ModelID, snap.ModelName)
	}
	if snap.State != airway.StateIdle || snap.BranchID != "trachea" {
		t.Errorf("expected cursor parked at trachea, got %+v", snap)
	}
}

func TestLoadModel_JSON(t *testing.T) {
	w := newTestWorkstation(t)

	if err := w.LoadModel(context.Background(), "pediatric_airway"); err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	snap := w.Snapshot()
	if snap.ModelID != "pediatric_airway" {
		t.Errorf("expected pediatric_airway, got %q", snap.ModelID)
	}
	if snap.BranchName != "Trachea" {
		t.Errorf("expected named trachea branch, got %q", snap.BranchName)
	}
}

func TestLoadModel_UnknownID(t *testing.T) {
	w := newTestWorkstation(t)

	err := w.LoadModel(context.Background(), "no_such_model")
	if !errors.Is(err, catalog.ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestLoadModel_FailureKeepsPriorModel(t *testing.T) {
	w := loadedWorkstation(t)
	if err := w.StartNavigation(); err != nil {
		t.Fatalf("StartNavigation failed: %v", err)
	}
	w.MoveForward()

	err := w.LoadModel(context.Background(), "broken_airway")
	if !errors.Is(err, airway.ErrInvalidModelData) {
		t.Fatalf("expected ErrInvalidModelData, got %v", err)
	}

	snap := w.Snapshot()
	if snap.ModelID != "adult_airway" {
		t.Errorf("expected prior model to survive, got %q", snap.ModelID)
	}
	if snap.State != airway.StateNavigating || snap.Index != 1 {
		t.Errorf("expected navigation untouched by failed load, got %+v", snap)
	}
}

func TestLoadModel_ReplacesModelAndResetsSession(t *testing.T) {
	w := loadedWorkstation(t)
	if err := w.StartNavigation(); err != nil {
		t.Fatalf("StartNavigation failed: %v", err)
	}
	w.JumpToProgress(1.0)
	w.NavigateToBranch("left_main")

	if err := w.LoadModel(context.Background(), "pediatric_airway"); err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	snap := w.Snapshot()
	if snap.ModelID != "pediatric_airway" || snap.BranchID != "trachea" {
		t.Errorf("expected fresh model at trachea, got %+v", snap)
	}
	if snap.State != airway.StateIdle || snap.HistoryDepth != 0 {
		t.Errorf("expected idle cursor with empty history, got %+v", snap)
	}
}

func TestLoadModel_CancelledContext(t *testing.T) {
	w := newTestWorkstation(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.LoadModel(ctx, "adult_airway"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
