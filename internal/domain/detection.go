package domain

// Detection is one labeled object reported by the recognition process.
type Detection struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Labels returns the detection labels in order.
func Labels(ds []Detection) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Label
	}
	return out
}
