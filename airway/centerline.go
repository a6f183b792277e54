package airway

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"
)

// Sample is one raw centerline input row before branch grouping.
type Sample struct {
	Position   r3.Vector
	Direction  r3.Vector
	Radius     float64
	BranchID   string
	Generation int
}

// ParseCenterlineCSV reads flat centerline rows from a header-prefixed CSV
// stream. Required columns: x, y, z, radius, branchId (or cellId), and
// generation; dx, dy, dz are optional (missing tangents are derived later
// from successive positions). Zero parseable rows or any malformed row fails
// with ErrInvalidModelData.
func ParseCenterlineCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrInvalidModelData, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	branchCol, ok := cols["branchid"]
	if !ok {
		branchCol, ok = cols["cellid"]
	}
	if !ok {
		return nil, fmt.Errorf("%w: header missing branchId/cellId column", ErrInvalidModelData)
	}
	for _, required := range []string{"x", "y", "z", "radius", "generation"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: header missing %s column", ErrInvalidModelData, required)
		}
	}
	_, hasDirection := cols["dx"]

	var samples []Sample
	row := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidModelData, row, err)
		}

		s := Sample{BranchID: strings.TrimSpace(rec[branchCol])}
		if s.BranchID == "" {
			return nil, fmt.Errorf("%w: row %d: empty branch id", ErrInvalidModelData, row)
		}

		fields := map[string]*float64{
			"x": &s.Position.X, "y": &s.Position.Y, "z": &s.Position.Z,
			"radius": &s.Radius,
		}
		if hasDirection {
			fields["dx"] = &s.Direction.X
			fields["dy"] = &s.Direction.Y
			fields["dz"] = &s.Direction.Z
		}
		for name, dst := range fields {
			idx, ok := cols[name]
			if !ok || idx >= len(rec) {
				return nil, fmt.Errorf("%w: row %d: missing %s value", ErrInvalidModelData, row, name)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: bad %s: %v", ErrInvalidModelData, row, name, err)
			}
			*dst = v
		}

		gen, err := strconv.Atoi(strings.TrimSpace(rec[cols["generation"]]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: bad generation: %v", ErrInvalidModelData, row, err)
		}
		s.Generation = gen

		samples = append(samples, s)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no parseable centerline rows", ErrInvalidModelData)
	}
	return samples, nil
}

// BranchesFromSamples groups flat samples into branches in first-appearance
// order, computes cumulative distances, derives missing tangents, infers
// parents by proximity, and fills missing diameter ranges from the observed
// radii.
func BranchesFromSamples(samples []Sample, cfg IngestConfig) ([]*AirwayBranch, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no centerline samples", ErrInvalidModelData)
	}

	var order []string
	grouped := make(map[string][]Sample)
	for _, s := range samples {
		if _, ok := grouped[s.BranchID]; !ok {
			order = append(order, s.BranchID)
		}
		grouped[s.BranchID] = append(grouped[s.BranchID], s)
	}

	branches := make([]*AirwayBranch, 0, len(order))
	for _, id := range order {
		rows := grouped[id]
		points := make([]CenterlinePoint, len(rows))
		for i, s := range rows {
			points[i] = CenterlinePoint{
				Position:   s.Position,
				Direction:  s.Direction,
				Radius:     s.Radius,
				Generation: s.Generation,
				BranchID:   id,
			}
		}
		accumulateDistances(points)
		deriveTangents(points)

		b := &AirwayBranch{
			ID:         id,
			Name:       id,
			Generation: rows[0].Generation,
			Points:     points,
		}
		if cfg.DeriveDiameters {
			b.Info.DiameterRangeMm = deriveDiameterRange(points)
		}
		branches = append(branches, b)
	}

	inferParents(branches, cfg.MaxParentDistanceM)
	return branches, nil
}

// branchDocument mirrors the pre-branched JSON model shape.
type branchDocument struct {
	ID               string          `mapstructure:"id"`
	Name             string          `mapstructure:"name"`
	ParentID         string          `mapstructure:"parentId"`
	ChildIDs         []string        `mapstructure:"childIds"`
	Generation       int             `mapstructure:"generation"`
	CenterlinePoints []pointDocument `mapstructure:"centerlinePoints"`
	AnatomicalInfo   *anatomicalDoc  `mapstructure:"anatomicalInfo"`
}

type pointDocument struct {
	Position    []float64       `mapstructure:"position"`
	Direction   []float64       `mapstructure:"direction"`
	Radius      float64         `mapstructure:"radius"`
	Generation  int             `mapstructure:"generation"`
	Annotations []annotationDoc `mapstructure:"annotations"`
}

type annotationDoc struct {
	Type       string    `mapstructure:"type"`
	Position   []float64 `mapstructure:"position"`
	Content    string    `mapstructure:"content"`
	Importance string    `mapstructure:"importance"`
}

type anatomicalDoc struct {
	StandardName    string    `mapstructure:"standardName"`
	DiameterRangeMm []float64 `mapstructure:"diameterRangeMm"`
	LengthRangeMm   []float64 `mapstructure:"lengthRangeMm"`
}

// ParseModelJSON parses a pre-branched model document: a JSON array of branch
// objects, or an object wrapping one under a "branches" key. Numeric fields
// are decoded weakly so integer and float spellings both work.
func ParseModelJSON(data []byte, cfg IngestConfig) ([]*AirwayBranch, error) {
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapper struct {
			Branches []map[string]interface{} `json:"branches"`
		}
		if err2 := json.Unmarshal(data, &wrapper); err2 != nil || wrapper.Branches == nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModelData, err)
		}
		raw = wrapper.Branches
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: document contains no branches", ErrInvalidModelData)
	}

	var docs []branchDocument
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &docs,
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelData, err)
	}

	branches := make([]*AirwayBranch, 0, len(docs))
	totalPoints := 0
	for _, doc := range docs {
		b, err := doc.toBranch(cfg)
		if err != nil {
			return nil, err
		}
		totalPoints += len(b.Points)
		branches = append(branches, b)
	}
	if totalPoints == 0 {
		return nil, fmt.Errorf("%w: document contains no centerline points", ErrInvalidModelData)
	}

	inferParents(branches, cfg.MaxParentDistanceM)
	return branches, nil
}

func (doc branchDocument) toBranch(cfg IngestConfig) (*AirwayBranch, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: branch with empty id", ErrInvalidModelData)
	}

	points := make([]CenterlinePoint, 0, len(doc.CenterlinePoints))
	for i, pd := range doc.CenterlinePoints {
		pos, ok := vec3(pd.Position)
		if !ok {
			return nil, fmt.Errorf("%w: branch %q point %d: position needs 3 components",
				ErrInvalidModelData, doc.ID, i)
		}
		p := CenterlinePoint{
			Position:   pos,
			Radius:     pd.Radius,
			Generation: doc.Generation,
			BranchID:   doc.ID,
		}
		if pd.Generation != 0 {
			p.Generation = pd.Generation
		}
		if dir, ok := vec3(pd.Direction); ok {
			p.Direction = dir
		}
		for _, ad := range pd.Annotations {
			annPos, _ := vec3(ad.Position)
			p.Annotations = append(p.Annotations, Annotation{
				Type:       annotationTypeFromString(ad.Type),
				Position:   annPos,
				Content:    ad.Content,
				Importance: importanceFromString(ad.Importance),
			})
		}
		points = append(points, p)
	}
	accumulateDistances(points)
	deriveTangents(points)

	name := doc.Name
	if name == "" {
		name = doc.ID
	}
	b := &AirwayBranch{
		ID:         doc.ID,
		Name:       name,
		ParentID:   doc.ParentID,
		ChildIDs:   doc.ChildIDs,
		Generation: doc.Generation,
		Points:     points,
	}
	if doc.AnatomicalInfo != nil {
		b.Info.StandardName = doc.AnatomicalInfo.StandardName
		b.Info.DiameterRangeMm = range2(doc.AnatomicalInfo.DiameterRangeMm)
		b.Info.LengthRangeMm = range2(doc.AnatomicalInfo.LengthRangeMm)
	}
	if cfg.DeriveDiameters && b.Info.DiameterRangeMm == ([2]float64{}) && len(points) > 0 {
		b.Info.DiameterRangeMm = deriveDiameterRange(points)
	}
	return b, nil
}

// inferParents assigns a parent to each branch lacking one: the nearest
// branch of the previous generation, measured from the child's first point to
// the candidate's distal end. Inference failure leaves the parent empty; root
// uniqueness is decided later by BuildTree.
func inferParents(branches []*AirwayBranch, maxDist float64) {
	byGeneration := make(map[int][]*AirwayBranch)
	for _, b := range branches {
		byGeneration[b.Generation] = append(byGeneration[b.Generation], b)
	}

	for _, b := range branches {
		if b.ParentID != "" || b.Generation == 0 || len(b.Points) == 0 {
			continue
		}
		candidates := byGeneration[b.Generation-1]
		idx, ok := nearestParentCandidate(b.Points[0].Position, candidates, maxDist)
		if !ok {
			continue
		}
		b.ParentID = candidates[idx].ID
	}
}

// nearestParentCandidate finds the candidate whose distal end is closest to
// the given start position.
func nearestParentCandidate(start r3.Vector, candidates []*AirwayBranch, maxDist float64) (int, bool) {
	bestIdx := -1
	bestDist := math.MaxFloat64

	for i, c := range candidates {
		if len(c.Points) == 0 {
			continue
		}
		end := c.Points[len(c.Points)-1].Position
		dist := start.Sub(end).Norm()
		if maxDist > 0 && dist > maxDist {
			continue
		}
		if dist < bestDist {
			bestDist = dist
			bestIdx = i
		}
	}

	return bestIdx, bestIdx >= 0
}

// accumulateDistances fills each point's cumulative arc length from the
// branch start.
func accumulateDistances(points []CenterlinePoint) {
	total := 0.0
	for i := range points {
		if i > 0 {
			total += points[i].Position.Sub(points[i-1].Position).Norm()
		}
		points[i].Distance = total
	}
}

// deriveTangents normalizes present directions and fills missing ones from
// successive positions. The last point reuses its predecessor's tangent.
func deriveTangents(points []CenterlinePoint) {
	for i := range points {
		if n := points[i].Direction.Norm(); n > 1e-9 {
			points[i].Direction = points[i].Direction.Mul(1.0 / n)
			continue
		}

		var d r3.Vector
		if i+1 < len(points) {
			d = points[i+1].Position.Sub(points[i].Position)
		}
		if d.Norm() < 1e-9 && i > 0 {
			d = points[i-1].Direction
		}
		if d.Norm() < 1e-9 {
			d = r3.Vector{Z: 1}
		}
		points[i].Direction = d.Mul(1.0 / d.Norm())
	}
}

// deriveDiameterRange estimates a lumen diameter range in mm from the
// observed radii: mean plus or minus one standard deviation, doubled.
func deriveDiameterRange(points []CenterlinePoint) [2]float64 {
	radii := make([]float64, 0, len(points))
	for _, p := range points {
		radii = append(radii, p.Radius)
	}
	mean, std := stat.MeanStdDev(radii, nil)
	if math.IsNaN(std) {
		std = 0
	}
	lo := (mean - std) * 2000
	if lo < 0 {
		lo = 0
	}
	return [2]float64{lo, (mean + std) * 2000}
}

// DownsampleCenterline thins a dense point sequence to approximately target
// points with a uniform stride, always keeping the final point. Used by
// reporting and visualization, never by navigation.
func DownsampleCenterline(points []CenterlinePoint, target int) []CenterlinePoint {
	if target <= 0 || len(points) <= target {
		return points
	}
	step := len(points) / target
	if step < 1 {
		step = 1
	}

	out := make([]CenterlinePoint, 0, target+1)
	lastKept := -1
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
		lastKept = i
	}
	if lastKept != len(points)-1 {
		out = append(out, points[len(points)-1])
	}
	return out
}

func vec3(v []float64) (r3.Vector, bool) {
	if len(v) < 3 {
		return r3.Vector{}, false
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, true
}

func range2(v []float64) [2]float64 {
	switch len(v) {
	case 0:
		return [2]float64{}
	case 1:
		return [2]float64{v[0], v[0]}
	default:
		return [2]float64{v[0], v[1]}
	}
}

func annotationTypeFromString(s string) AnnotationType {
	switch strings.ToLower(s) {
	case "arrow":
		return AnnotationArrow
	case "highlight":
		return AnnotationHighlight
	case "measurement":
		return AnnotationMeasurement
	case "comparison":
		return AnnotationComparison
	default:
		return AnnotationText
	}
}

func importanceFromString(s string) AnnotationImportance {
	switch strings.ToLower(s) {
	case "medium":
		return ImportanceMedium
	case "high":
		return ImportanceHigh
	case "critical":
		return ImportanceCritical
	default:
		return ImportanceLow
	}
}
