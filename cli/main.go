package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"
	viz "github.com/viam-labs/motion-tools/client/client"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	airwayvision "github.com/russellmiller49/AirwayVision"
	"github.com/russellmiller49/AirwayVision/anchoring"
)

var (
	configPath   string
	modelID      string
	leafID       string
	vizPoses     bool
	envPath      string
	anchorName   string
	anchorPreset string
	reportOut    string
	exportOut    string
)

var rootCmd = &cobra.Command{
	Use:   "airwayvision",
	Short: "Virtual bronchoscopy workstation for airway anatomy education",
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "airwayvision.toml", "path to the workstation config file")

	flyCmd.Flags().StringVar(&modelID, "model", "", "model id to load")
	flyCmd.Flags().BoolVar(&vizPoses, "viz", false, "stream camera poses to a motion-tools visualizer")

	tourCmd.Flags().StringVar(&modelID, "model", "", "model id to load")
	tourCmd.Flags().StringVar(&leafID, "leaf", "", "leaf branch id to tour to (defaults to the deepest leaf)")
	tourCmd.Flags().BoolVar(&vizPoses, "viz", false, "stream camera poses to a motion-tools visualizer")

	anchorsSuggestCmd.Flags().StringVar(&envPath, "env", "", "JSON environment capture (defaults to a built-in demo room)")

	anchorsPlaceCmd.Flags().StringVar(&modelID, "model", "", "model id to load")
	anchorsPlaceCmd.Flags().StringVar(&anchorName, "name", "", "anchor name (defaults to the model id)")
	anchorsPlaceCmd.Flags().StringVar(&anchorPreset, "preset", "table_top", "placement preset: table_top, wall_mounted, floor_standing, floating, handheld, manual, custom")
	anchorsPlaceCmd.Flags().StringVar(&envPath, "env", "", "JSON environment capture (defaults to a built-in demo room)")

	anchorsListCmd.Flags().StringVar(&modelID, "model", "", "model id to list anchors for")
	anchorsRemoveCmd.Flags().StringVar(&modelID, "model", "", "model id whose anchor to remove")

	reportCmd.Flags().StringVar(&modelID, "model", "", "model id to report on")
	reportCmd.Flags().StringVar(&reportOut, "out", "report.html", "output HTML file")

	exportCmd.Flags().StringVar(&modelID, "model", "", "model id to export")
	exportCmd.Flags().StringVar(&exportOut, "out", "model.pcd", "output PCD file")

	anchorsCmd.AddCommand(anchorsSuggestCmd, anchorsPlaceCmd, anchorsListCmd, anchorsRemoveCmd)
	rootCmd.AddCommand(modelsCmd, flyCmd, tourCmd, anchorsCmd, reportCmd, exportCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("airwayvision-cli")
		w, err := openWorkstation(logger)
		if err != nil {
			return err
		}
		defer w.Close()

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCOMPLEXITY\tVARIANT\tFORMAT")
		for _, m := range w.Catalog().List() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Complexity, m.Variant, m.Format)
		}
		return tw.Flush()
	},
}

var flyCmd = &cobra.Command{
	Use:   "fly",
	Short: "Fly the camera from the trachea to a leaf, descending the first child at each carina",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("airwayvision-cli")
		w, err := openLoaded(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer w.Close()

		if vizPoses {
			w.Subscribe(drawCamera(logger))
		}
		if err := airwayvision.FlyToLeaf(cmd.Context(), w); err != nil {
			return err
		}
		printSnapshot(w.Snapshot())
		return nil
	},
}

var tourCmd = &cobra.Command{
	Use:   "tour",
	Short: "Run the guided tour from the trachea down to a leaf branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("airwayvision-cli")
		w, err := openLoaded(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer w.Close()

		if leafID == "" {
			if err := airwayvision.TourDeepestPath(cmd.Context(), w); err != nil {
				return err
			}
			printSnapshot(w.Snapshot())
			return nil
		}

		plan, err := w.PlanTour(leafID)
		if err != nil {
			return err
		}
		var onFrame func(spatialmath.Pose)
		if vizPoses {
			onFrame = drawTourFrame(logger)
		}
		if err := w.RunTour(cmd.Context(), plan, onFrame); err != nil {
			return err
		}
		printSnapshot(w.Snapshot())
		return nil
	},
}

var anchorsCmd = &cobra.Command{
	Use:   "anchors",
	Short: "Manage spatial anchors for a model",
}

var anchorsSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Rank placement suggestions for the captured environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("airwayvision-cli")
		w, err := openWorkstation(logger)
		if err != nil {
			return err
		}
		defer w.Close()

		surfaces, lux, err := resolveEnvironment()
		if err != nil {
			return err
		}
		suggestions, err := w.DetectPlacements(surfaces, lux)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PRESET\tCONFIDENCE\tSCALE\tRATIONALE")
		for _, s := range suggestions {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%s\n", s.Preset, s.Confidence, s.Transform.Scale, s.Rationale)
		}
		return tw.Flush()
	},
}

var anchorsPlaceCmd = &cobra.Command{
	Use:   "place",
	Short: "Anchor the model with a placement preset and persist it",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("airwayvision-cli")
		w, err := openLoaded(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer w.Close()

		preset, ok := anchoring.PresetFromString(anchorPreset)
		if !ok {
			return fmt.Errorf("unknown preset %q", anchorPreset)
		}
		surfaces, lux, err := resolveEnvironment()
		if err != nil {
			return err
		}
		if _, err := w.DetectPlacements(surfaces, lux); err != nil {
			return err
		}

		name := anchorName
		if name == "" {
			name = modelID
		}
		anchor, err := w.AnchorModel(name, preset)
		if err != nil {
			return err
		}
		pos := anchor.Transform.Pose.Point()
		fmt.Printf("anchored %s (%s) at (%.2f, %.2f, %.2f) scale %.2f\n",
			anchor.Name, anchor.ID, pos.X, pos.Y, pos.Z, anchor.Transform.Scale)
		return nil
	},
}

var anchorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the persisted anchors for a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("airwayvision-cli")
		w, err := openLoaded(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer w.Close()

		anchors, err := w.SavedAnchors()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPRESET\tSCALE\tCREATED")
		for _, a := range anchors {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n",
				a.ID, a.Name, a.Preset, a.Transform.Scale, a.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var anchorsRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the most recent persisted anchor for a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("airwayvision-cli")
		w, err := openLoaded(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer w.Close()

		anchor, found, err := w.RestoreAnchors()
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("no anchors saved for model %s\n", modelID)
			return nil
		}
		if err := w.RemoveAnchor(); err != nil {
			return err
		}
		fmt.Printf("removed anchor %s (%s)\n", anchor.Name, anchor.ID)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write an HTML report of the model's radius profile and branching",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("airwayvision-cli")
		w, err := openLoaded(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer w.Close()

		f, err := os.Create(reportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := w.Report(f); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", reportOut)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the model's centerline samples as a binary PCD point cloud",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("airwayvision-cli")
		w, err := openLoaded(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.ExportPointCloud(exportOut); err != nil {
			return err
		}
		fmt.Printf("point cloud written to %s\n", exportOut)
		return nil
	},
}

func openWorkstation(logger logging.Logger) (*airwayvision.Workstation, error) {
	cfg, err := airwayvision.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return airwayvision.New(cfg, logger)
}

func openLoaded(ctx context.Context, logger logging.Logger) (*airwayvision.Workstation, error) {
	if modelID == "" {
		return nil, errors.New("--model is required")
	}
	w, err := openWorkstation(logger)
	if err != nil {
		return nil, err
	}
	if err := w.LoadModel(ctx, modelID); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// drawCamera streams every snapshot's camera pose to a running motion-tools
// visualizer. Draw failures are logged at debug so a missing visualizer never
// interrupts a session.
func drawCamera(logger logging.Logger) func(airwayvision.Snapshot) {
	return func(snap airwayvision.Snapshot) {
		if snap.Pose == nil {
			return
		}
		if err := viz.DrawPoses([]spatialmath.Pose{snap.Pose}, []string{"camera"}, true); err != nil {
			logger.Debugf("viz: %v", err)
		}
	}
}

func drawTourFrame(logger logging.Logger) func(spatialmath.Pose) {
	return func(p spatialmath.Pose) {
		if err := viz.DrawPoses([]spatialmath.Pose{p}, []string{"camera"}, true); err != nil {
			logger.Debugf("viz: %v", err)
		}
	}
}

func printSnapshot(snap airwayvision.Snapshot) {
	fmt.Printf("model=%s branch=%s (%s) generation=%d index=%d progress=%.2f\n",
		snap.ModelID, snap.BranchID, snap.BranchName, snap.Generation, snap.Index, snap.Progress)
	fmt.Printf("position=(%.3f, %.3f, %.3f) lumen diameter=%.1fmm state=%s\n",
		snap.Position.X, snap.Position.Y, snap.Position.Z, snap.Educational.LumenDiameterMm, snap.State)
}

type environmentFile struct {
	AmbientLux float64       `json:"ambientLux"`
	Surfaces   []surfaceFile `json:"surfaces"`
}

type surfaceFile struct {
	Type       string      `json:"type"`
	Confidence float64     `json:"confidence"`
	Normal     []float64   `json:"normal"`
	Points     [][]float64 `json:"points"`
}

// resolveEnvironment loads surface samples from --env, falling back to the
// built-in demo room so anchoring can be exercised without an AR capture.
func resolveEnvironment() ([]anchoring.Surface, float64, error) {
	if envPath == "" {
		surfaces, lux := demoRoom()
		return surfaces, lux, nil
	}
	data, err := os.ReadFile(envPath)
	if err != nil {
		return nil, 0, err
	}
	var doc environmentFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", envPath, err)
	}

	surfaces := make([]anchoring.Surface, 0, len(doc.Surfaces))
	for i, s := range doc.Surfaces {
		st, ok := anchoring.SurfaceTypeFromString(s.Type)
		if !ok {
			return nil, 0, fmt.Errorf("surface %d: unknown type %q", i, s.Type)
		}
		surf := anchoring.Surface{Type: st, Confidence: s.Confidence, Normal: vec(s.Normal)}
		for _, p := range s.Points {
			surf.Points = append(surf.Points, vec(p))
		}
		surfaces = append(surfaces, surf)
	}
	return surfaces, doc.AmbientLux, nil
}

// demoRoom is a canned 4x5 m environment with a table, one wall, and the
// floor, used when no capture file is supplied.
func demoRoom() ([]anchoring.Surface, float64) {
	return []anchoring.Surface{
		{
			Type:       anchoring.SurfaceTable,
			Confidence: 0.95,
			Normal:     r3.Vector{Z: 1},
			Points: []r3.Vector{
				{X: 1.2, Y: 1.0, Z: 0.75}, {X: 2.0, Y: 1.0, Z: 0.75},
				{X: 1.2, Y: 1.8, Z: 0.75}, {X: 2.0, Y: 1.8, Z: 0.75},
			},
		},
		{
			Type:       anchoring.SurfaceWall,
			Confidence: 0.85,
			Normal:     r3.Vector{X: 1},
			Points: []r3.Vector{
				{X: 0, Y: 0, Z: 0}, {X: 0, Y: 5, Z: 0},
				{X: 0, Y: 0, Z: 2.6}, {X: 0, Y: 5, Z: 2.6},
			},
		},
		{
			Type:       anchoring.SurfaceFloor,
			Confidence: 0.9,
			Normal:     r3.Vector{Z: 1},
			Points: []r3.Vector{
				{X: 0, Y: 0, Z: 0}, {X: 4, Y: 0, Z: 0},
				{X: 0, Y: 5, Z: 0}, {X: 4, Y: 5, Z: 0},
			},
		},
	}, 450
}

func vec(v []float64) r3.Vector {
	var out r3.Vector
	if len(v) > 0 {
		out.X = v[0]
	}
	if len(v) > 1 {
		out.Y = v[1]
	}
	if len(v) > 2 {
		out.Z = v[2]
	}
	return out
}
