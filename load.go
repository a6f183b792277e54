package airwayvision

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/russellmiller49/AirwayVision/airway"
	"github.com/russellmiller49/AirwayVision/internal/catalog"
)

// LoadModel looks a model up in the catalog, ingests its centerline asset,
// and installs the resulting tree in the navigator. Any failure leaves the
// previously loaded model untouched.
func (w *Workstation) LoadModel(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	desc, err := w.catalog.Lookup(id)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(w.catalog.AssetFile(desc))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", airway.ErrCenterlineNotFound, desc.AssetPath, err)
	}

	branches, err := ingest(desc, data)
	if err != nil {
		return err
	}
	tree, err := airway.BuildTree(branches)
	if err != nil {
		return err
	}
	if err := tree.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.Install(tree)
	w.session.Reset()
	w.modelID = desc.ID
	w.modelName = desc.Name
	w.logger.Infof("Loaded model %s (%q): %d branches, max generation %d",
		desc.ID, desc.Name, tree.BranchCount(), tree.MaxGeneration())
	w.notifyLocked()
	return nil
}

func ingest(desc catalog.ModelDescriptor, data []byte) ([]*airway.AirwayBranch, error) {
	cfg := airway.DefaultConfig().Ingest
	switch desc.Format {
	case catalog.FormatCSV:
		samples, err := airway.ParseCenterlineCSV(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return airway.BranchesFromSamples(samples, cfg)
	case catalog.FormatJSON:
		return airway.ParseModelJSON(data, cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported asset format %s", airway.ErrInvalidModelData, desc.Format)
	}
}
