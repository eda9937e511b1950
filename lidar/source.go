package lidar

import "context"

// Source supplies the most recent scan from a range finder. ok is false until a first scan
// has arrived.
type Source interface {
	LatestScan(ctx context.Context) (scan RangeScan, ok bool, err error)
}
