package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/rdk/logging"

	airwayvision "github.com/russellmiller49/AirwayVision"
)

func main() {
	configPath := flag.String("config", "airwayvision.toml", "path to workstation config file")
	modelID := flag.String("model", "", "model id to study")
	flag.Parse()

	logger := logging.NewDebugLogger("airwayvision")

	if *modelID == "" {
		logger.Fatal("-model flag is required")
	}
	cfg, err := airwayvision.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w, err := airwayvision.New(cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer w.Close()

	logger.Infof("Catalog holds %d models", w.Catalog().Len())

	if err := airwayvision.Run(ctx, w, *modelID); err != nil {
		logger.Fatal(err)
	}

	snap := w.Snapshot()
	logger.Infof("Final position: branch %s (%s), generation %d, index %d, progress %.2f",
		snap.BranchID, snap.BranchName, snap.Generation, snap.Index, snap.Progress)
	logger.Infof("Lumen diameter %.1f mm at %.1f mm from branch start",
		snap.Educational.LumenDiameterMm, snap.Educational.DistanceMm)
}
