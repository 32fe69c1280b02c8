// Package color implements an HSV-threshold contour tracker, adapted from
// the project's original color-tracking pipeline into the full Pipeline
// contract (bind, per-camera settings, multi-view results) instead of a
// bare (point, ok) tuple.
package color

import (
	"image"
	"image/color"
	"sort"
	"time"

	"gocv.io/x/gocv"

	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/settings"
)

const TypeName = "color"

func floatPtr(f float64) *float64 { return &f }

func schema() settings.Schema {
	return settings.Schema{
		{Key: "hueMin", Constraint: settings.Range{Min: floatPtr(0), Max: floatPtr(180)}, Default: settings.FloatValue(5)},
		{Key: "hueMax", Constraint: settings.Range{Min: floatPtr(0), Max: floatPtr(180)}, Default: settings.FloatValue(30)},
		{Key: "satMin", Constraint: settings.Range{Min: floatPtr(0), Max: floatPtr(255)}, Default: settings.FloatValue(100)},
		{Key: "satMax", Constraint: settings.Range{Min: floatPtr(0), Max: floatPtr(255)}, Default: settings.FloatValue(255)},
		{Key: "valMin", Constraint: settings.Range{Min: floatPtr(0), Max: floatPtr(255)}, Default: settings.FloatValue(0)},
		{Key: "valMax", Constraint: settings.Range{Min: floatPtr(0), Max: floatPtr(255)}, Default: settings.FloatValue(255)},
		{Key: "minContourArea", Constraint: settings.Range{Min: floatPtr(0), Max: floatPtr(1)}, Default: settings.FloatValue(0.01)},
		{Key: "maxContourArea", Constraint: settings.Range{Min: floatPtr(0), Max: floatPtr(1)}, Default: settings.FloatValue(1)},
		{Key: "orientation", Constraint: settings.Enumerated{Options: []settings.Value{
			settings.StringValue("0"), settings.StringValue("90"), settings.StringValue("180"), settings.StringValue("270"),
		}}, Default: settings.StringValue("0")},
	}
}

func init() {
	pipeline.Register(pipeline.Registration{
		TypeName: TypeName,
		Schema:   schema(),
		New: func(values *settings.Values) pipeline.Pipeline {
			return &Pipeline{values: values}
		},
	})
}

// Pipeline thresholds a frame in HSV space and reports the largest
// in-bounds contour's centroid as a Detection.
type Pipeline struct {
	values      *settings.Values
	cameraIndex int
}

func (p *Pipeline) Bind(cameraIndex int) {
	p.cameraIndex = cameraIndex
}

func (p *Pipeline) Settings() *settings.Values {
	return p.values
}

func (p *Pipeline) OnSettingChanged(key string, value settings.Value) {}

func (p *Pipeline) thresholdScalars() (gocv.Scalar, gocv.Scalar) {
	get := func(key string) float64 {
		v, _ := p.values.Get(key)
		f, _ := v.AsFloat()
		return f
	}
	min := gocv.Scalar{Val1: get("hueMin"), Val2: get("satMin"), Val3: get("valMin")}
	max := gocv.Scalar{Val1: get("hueMax"), Val2: get("satMax"), Val3: get("valMax")}
	return min, max
}

type sortableContours [][]image.Point

func (s sortableContours) Len() int      { return len(s) }
func (s sortableContours) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s sortableContours) Less(i, j int) bool {
	return gocv.ContourArea(s[i]) < gocv.ContourArea(s[j])
}

func centroid(rows, cols int, contour []image.Point) image.Point {
	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.FillPoly(&mask, [][]image.Point{contour}, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	moments := gocv.Moments(mask, false)
	if moments["m00"] == 0 {
		return image.Point{}
	}

	return image.Point{
		X: int(moments["m10"] / moments["m00"]),
		Y: int(moments["m01"] / moments["m00"]),
	}
}

func (p *Pipeline) ProcessFrame(frame gocv.Mat, timestamp time.Time) pipeline.Result {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	thresh := gocv.NewMat()
	defer thresh.Close()
	min, max := p.thresholdScalars()
	gocv.InRangeWithScalar(hsv, min, max, &thresh)

	minAreaV, _ := p.values.Get("minContourArea")
	maxAreaV, _ := p.values.Get("maxContourArea")
	minFrac, _ := minAreaV.AsFloat()
	maxFrac, _ := maxAreaV.AsFloat()
	imageArea := float64(thresh.Rows() * thresh.Cols())

	out := frame.Clone()

	var kept [][]image.Point
	for _, contour := range gocv.FindContours(thresh, gocv.RetrievalList, gocv.ChainApproxSimple) {
		area := gocv.ContourArea(contour)
		if area < minFrac*imageArea || area > maxFrac*imageArea {
			continue
		}
		rect := gocv.MinAreaRect(contour)
		gocv.Rectangle(&out, image.Rectangle{Min: rect.BoundingRect.Min, Max: rect.BoundingRect.Max}, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 2)
		kept = append(kept, contour)
	}
	sort.Sort(sortableContours(kept))

	var detections []pipeline.Detection
	if len(kept) > 0 {
		largest := kept[len(kept)-1]
		c := centroid(thresh.Rows(), thresh.Cols(), largest)
		detections = append(detections, pipeline.Detection{
			Label:       "target",
			Confidence:  1,
			BoundingBox: gocv.MinAreaRect(largest).BoundingRect,
			Center:      c,
		})
	}

	return pipeline.Result{
		Views: []pipeline.View{
			{ID: "step_0", Frame: out},
			{ID: "step_1", Frame: thresh.Clone()},
		},
		Detections: detections,
	}
}
