package domain

// PricePoint is one sample of a token's USD price series.
type PricePoint struct {
	TimestampMs int64
	Price       float64
}

// VolumePoint is one sample of a token's traded-volume series.
type VolumePoint struct {
	TimestampMs int64
	Volume      float64
}

// EquityCurvePoint is the portfolio equity at one simulated step. Timestamps
// are strictly increasing; gaps exist only where steps were skipped for
// missing price data.
type EquityCurvePoint struct {
	TimestampMs int64
	EquityUsd   float64
}
