package models

// PriceRow is a ticker's daily price snapshot from the price provider.
type PriceRow struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"` // e.g. 3.25 for "3.25%"
	Volume    int64   `json:"volume"`
	PE        float64 `json:"pe,omitempty"`
	HasPE     bool    `json:"has_pe"`
}
