package airwayvision

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/russellmiller49/AirwayVision/airway"
)

// reportProfilePoints caps the radius profile series so reports stay light
// even for research-complexity models.
const reportProfilePoints = 200

// Report renders an HTML overview of the loaded model: the lumen radius
// profile along the deepest airway path and the branch count per generation.
func (w *Workstation) Report(wr io.Writer) error {
	w.mu.Lock()
	tree := w.nav.Tree()
	modelName := w.modelName
	w.mu.Unlock()

	if tree == nil {
		return fmt.Errorf("%w: no model loaded", airway.ErrNavigation)
	}

	leafID := deepestLeaf(tree)
	path, ok := tree.PathFromRoot(leafID)
	if !ok {
		return fmt.Errorf("%w: no path to leaf %s", airway.ErrNavigation, leafID)
	}
	profile := airway.DownsampleCenterline(pathProfile(tree, path), reportProfilePoints)

	page := components.NewPage()
	page.AddCharts(
		radiusProfileChart(modelName, leafID, profile),
		generationChart(tree),
	)
	return page.Render(wr)
}

// deepestLeaf picks the highest-generation leaf, ties broken by id order.
func deepestLeaf(tree *airway.Tree) string {
	best := ""
	bestGen := -1
	for _, id := range tree.Leaves() {
		b, ok := tree.FindBranch(id)
		if !ok {
			continue
		}
		if b.Generation > bestGen {
			best, bestGen = id, b.Generation
		}
	}
	return best
}

// pathProfile concatenates the centerline samples along the path, rebasing
// each branch's arc length so Distance runs from the start of the trachea.
func pathProfile(tree *airway.Tree, path []string) []airway.CenterlinePoint {
	var profile []airway.CenterlinePoint
	offset := 0.0
	for _, id := range path {
		b, ok := tree.FindBranch(id)
		if !ok {
			continue
		}
		for _, p := range b.Points {
			p.Distance += offset
			profile = append(profile, p)
		}
		offset += b.Length()
	}
	return profile
}

func radiusProfileChart(modelName, leafID string, profile []airway.CenterlinePoint) *charts.Line {
	x := make([]string, 0, len(profile))
	y := make([]opts.LineData, 0, len(profile))
	for _, p := range profile {
		x = append(x, fmt.Sprintf("%.0f", p.Distance*1000))
		y = append(y, opts.LineData{Value: p.Radius * 1000})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Lumen Radius Profile", Subtitle: fmt.Sprintf("model=%s path=trachea..%s points=%d", modelName, leafID, len(profile))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Distance (mm)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Radius (mm)"}),
	)
	line.SetXAxis(x).
		AddSeries("radius", y, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

func generationChart(tree *airway.Tree) *charts.Bar {
	counts := make([]int, tree.MaxGeneration()+1)
	for _, id := range tree.BranchIDs() {
		if b, ok := tree.FindBranch(id); ok && b.Generation >= 0 && b.Generation < len(counts) {
			counts[b.Generation]++
		}
	}
	x := make([]string, len(counts))
	y := make([]opts.BarData, len(counts))
	for g, n := range counts {
		x[g] = fmt.Sprintf("G%d", g)
		y[g] = opts.BarData{Value: n}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Branches per Generation", Subtitle: fmt.Sprintf("branches=%d max generation=%d", tree.BranchCount(), tree.MaxGeneration())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("branches", y, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}
