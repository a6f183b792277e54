package anchoring

import (
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/pointcloud"
)

// BuildContext condenses raw surface detections and an ambient light reading
// into an EnvironmentalContext snapshot. Surfaces below the configured
// confidence floor are ignored; when several surfaces of one type survive,
// the most confident wins. Room extent comes from the bounding box of every
// accepted surface sample.
func BuildContext(surfaces []Surface, ambientLux float64, cfg EnvironmentConfig) EnvironmentalContext {
	ctx := EnvironmentalContext{
		Lighting:   classifyLighting(ambientLux, cfg),
		CapturedAt: time.Now(),
	}

	room := pointcloud.NewBasicEmpty()
	best := map[SurfaceType]float64{}

	for _, surf := range surfaces {
		if surf.Confidence < cfg.MinSurfaceConfidence || len(surf.Points) == 0 {
			continue
		}

		cloud := pointcloud.NewBasicEmpty()
		for _, pt := range surf.Points {
			//nolint:errcheck
			cloud.Set(pt, nil)
			//nolint:errcheck
			room.Set(pt, nil)
		}

		if prev, seen := best[surf.Type]; seen && surf.Confidence <= prev {
			continue
		}
		best[surf.Type] = surf.Confidence
		centroid := cloudCentroid(cloud)

		switch surf.Type {
		case SurfaceTable:
			ctx.HasTable = true
			ctx.TableAnchor = centroid
		case SurfaceWall:
			ctx.HasWall = true
			ctx.WallAnchor = centroid
			ctx.WallNormal = surf.Normal
		case SurfaceFloor:
			ctx.HasFloor = true
			ctx.FloorAnchor = centroid
		}
	}

	if room.Size() > 0 {
		meta := room.MetaData()
		ctx.RoomSize = r3.Vector{
			X: meta.MaxX - meta.MinX,
			Y: meta.MaxY - meta.MinY,
			Z: meta.MaxZ - meta.MinZ,
		}
		ctx.RoomCenter = r3.Vector{
			X: (meta.MaxX + meta.MinX) / 2,
			Y: (meta.MaxY + meta.MinY) / 2,
			Z: (meta.MaxZ + meta.MinZ) / 2,
		}
	}

	ctx.UnmetRequirements = unmetRequirements(ctx, cfg)
	return ctx
}

// cloudCentroid returns the mean position of every point in the cloud.
func cloudCentroid(cloud pointcloud.PointCloud) r3.Vector {
	n := float64(cloud.Size())
	if n == 0 {
		return r3.Vector{}
	}
	var cx, cy, cz float64
	cloud.Iterate(0, 0, func(pt r3.Vector, _ pointcloud.Data) bool {
		cx += pt.X
		cy += pt.Y
		cz += pt.Z
		return true
	})
	return r3.Vector{X: cx / n, Y: cy / n, Z: cz / n}
}

func classifyLighting(lux float64, cfg EnvironmentConfig) LightingQuality {
	switch {
	case lux < cfg.PoorLuxBelow:
		return LightingPoor
	case lux < cfg.FairLuxBelow:
		return LightingFair
	case lux < cfg.GoodLuxBelow:
		return LightingGood
	default:
		return LightingExcellent
	}
}

func unmetRequirements(ctx EnvironmentalContext, cfg EnvironmentConfig) []string {
	var unmet []string
	if !ctx.HasTable && !ctx.HasWall && !ctx.HasFloor {
		unmet = append(unmet, "no anchorable surfaces detected")
	}
	if ctx.RoomSize.X < cfg.MinRoomExtentM || ctx.RoomSize.Y < cfg.MinRoomExtentM {
		unmet = append(unmet, "room extent too small for walk-around viewing")
	}
	if ctx.Lighting == LightingPoor {
		unmet = append(unmet, "lighting too dim for stable tracking")
	}
	return unmet
}
