package domain

// DepthUpdate is one incremental delta from the depth stream, tagged with the
// inclusive update-id range [FirstUpdateID, LastUpdateID] the exchange uses to
// let consumers detect gaps.
type DepthUpdate struct {
	FirstUpdateID uint64
	LastUpdateID  uint64
	Bids          []PriceLevel
	Asks          []PriceLevel
}

func NewDepthUpdate(firstUpdateID, lastUpdateID uint64, bids, asks []PriceLevel) *DepthUpdate {
	return &DepthUpdate{
		FirstUpdateID: firstUpdateID,
		LastUpdateID:  lastUpdateID,
		Bids:          bids,
		Asks:          asks,
	}
}

// Valid reports whether the id range is well formed. The worker assumes this
// has already been checked at the ingest layer.
func (d *DepthUpdate) Valid() bool {
	return d.FirstUpdateID <= d.LastUpdateID
}
