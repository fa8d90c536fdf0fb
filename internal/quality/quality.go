// Package quality reduces a page image to a small quality report used as
// context for a verification. It never gates the pipeline.
package quality

import (
	"image"
	"image/color"
	"math"
)

// Status is the overall quality grade.
type Status string

const (
	StatusExcellent Status = "Excellent"
	StatusGood      Status = "Good"
	StatusFair      Status = "Fair"
	StatusPoor      Status = "Poor"
)

// Metric statuses.
const (
	MetricGood        = "Good"
	MetricBlurry      = "Blurry"
	MetricTooDark     = "Too Dark"
	MetricTooBright   = "Too Bright"
	MetricLowContrast = "Low Contrast"
)

// Advisories, one per failing metric.
const (
	AdviceBlurry      = "Hold camera steady or use better focus"
	AdviceTooDark     = "Increase lighting or use flash"
	AdviceTooBright   = "Reduce lighting or adjust exposure"
	AdviceLowContrast = "Improve document contrast or lighting conditions"
	AdviceGood        = "Image quality is good for OCR"
)

// Thresholds are the configurable metric bounds.
type Thresholds struct {
	Sharpness     float64
	BrightnessMin float64
	BrightnessMax float64
	ContrastMin   float64
}

// DefaultThresholds are tuned for phone photos of identity cards.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Sharpness:     100,
		BrightnessMin: 50,
		BrightnessMax: 200,
		ContrastMin:   30,
	}
}

// Report is the derived quality summary for one page.
type Report struct {
	Page             int      `json:"page"`
	Sharpness        float64  `json:"sharpness"`
	SharpnessStatus  string   `json:"sharpness_status"`
	Brightness       float64  `json:"brightness"`
	BrightnessStatus string   `json:"brightness_status"`
	Contrast         float64  `json:"contrast"`
	ContrastStatus   string   `json:"contrast_status"`
	Status           Status   `json:"overall_status"`
	Advisories       []string `json:"advisories"`
}

// Scorer computes reports. It is a pure function of pixel data.
type Scorer struct {
	thresholds Thresholds
}

// NewScorer returns a Scorer with the given thresholds.
func NewScorer(t Thresholds) *Scorer {
	return &Scorer{thresholds: t}
}

// Score measures sharpness as the variance of the Laplacian response,
// brightness as mean luma and contrast as the standard deviation of luma.
func (s *Scorer) Score(img image.Image) Report {
	luma := toLuma(img)
	mean, std := meanStd(luma.pix)
	sharpness := laplacianVariance(luma)

	r := Report{
		Sharpness:  round2(sharpness),
		Brightness: round2(mean),
		Contrast:   round2(std),
	}

	issues := 0
	var advisories []string

	r.SharpnessStatus = MetricGood
	if sharpness <= s.thresholds.Sharpness {
		r.SharpnessStatus = MetricBlurry
		advisories = append(advisories, AdviceBlurry)
		issues++
	}

	r.BrightnessStatus = MetricGood
	switch {
	case mean < s.thresholds.BrightnessMin:
		r.BrightnessStatus = MetricTooDark
		advisories = append(advisories, AdviceTooDark)
		issues++
	case mean > s.thresholds.BrightnessMax:
		r.BrightnessStatus = MetricTooBright
		advisories = append(advisories, AdviceTooBright)
		issues++
	}

	r.ContrastStatus = MetricGood
	if std < s.thresholds.ContrastMin {
		r.ContrastStatus = MetricLowContrast
		advisories = append(advisories, AdviceLowContrast)
		issues++
	}

	r.Status = grade(issues)
	if len(advisories) == 0 {
		advisories = []string{AdviceGood}
	}
	r.Advisories = advisories
	return r
}

func grade(issues int) Status {
	switch issues {
	case 0:
		return StatusExcellent
	case 1:
		return StatusGood
	case 2:
		return StatusFair
	default:
		return StatusPoor
	}
}

type lumaPlane struct {
	w, h int
	pix  []float64
}

func (p lumaPlane) at(x, y int) float64 {
	return p.pix[y*p.w+x]
}

func toLuma(img image.Image) lumaPlane {
	b := img.Bounds()
	p := lumaPlane{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			p.pix[y*p.w+x] = float64(g.Y)
		}
	}
	return p
}

// laplacianVariance applies the 4-neighbour kernel with mirrored borders
// that do not repeat the edge pixel.
func laplacianVariance(p lumaPlane) float64 {
	if p.w == 0 || p.h == 0 {
		return 0
	}
	resp := make([]float64, 0, p.w*p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			v := p.at(reflect101(x-1, p.w), y) +
				p.at(reflect101(x+1, p.w), y) +
				p.at(x, reflect101(y-1, p.h)) +
				p.at(x, reflect101(y+1, p.h)) -
				4*p.at(x, y)
			resp = append(resp, v)
		}
	}
	_, std := meanStd(resp)
	return std * std
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	mean := sum / float64(len(v))
	var sq float64
	for _, x := range v {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(v)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
