package models

// SketchRequest queries one feature digest. Q asks for a quantile and X for
// the CDF at a value; with neither only the summary is returned.
type SketchRequest struct {
	Feature string `param:"feature" validate:"required"`
	Q       string `query:"q" validate:"omitempty,numeric"`
	X       string `query:"x" validate:"omitempty,numeric"`
}

// SketchSummary describes one feature digest.
type SketchSummary struct {
	Feature   string   `json:"feature"`
	Count     float64  `json:"count"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	Centroids int      `json:"centroids"`
	Quantile  *float64 `json:"quantile,omitempty"`
	CDF       *float64 `json:"cdf,omitempty"`
	Lookup    *float64 `json:"lookup,omitempty"`
}
