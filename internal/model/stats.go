package model

// Stats summarises the pooled inter-anchor deltas of two sources. The
// Filtered fields exclude values outside [Q25-1.5*IQR, Q75+1.5*IQR].
type Stats struct {
	Mean         float64 `json:"mean"`
	Std          float64 `json:"std"`
	CV           float64 `json:"cv"`
	Q25          float64 `json:"q25"`
	Q50          float64 `json:"q50"`
	Q75          float64 `json:"q75"`
	IQR          float64 `json:"iqr"`
	FilteredMean float64 `json:"filtered_mean"`
	FilteredStd  float64 `json:"filtered_std"`
	FilteredCV   float64 `json:"filtered_cv"`
}
