package navigation

import (
	"context"
	"math"
	"sync"

	"go.uber.org/atomic"

	"github.com/gapnav/localplanner/lidar"
	"github.com/gapnav/localplanner/motionplan/localplanner"
	"github.com/gapnav/localplanner/spatialmath"
)

var (
	_ localplanner.PoseSource = (*Snapshot)(nil)
	_ lidar.Source            = (*Snapshot)(nil)
)

// Snapshot keeps the most recent value of every planner input. Updates arrive from independent
// goroutines and each replaces the previous value; nothing is queued.
type Snapshot struct {
	mu sync.RWMutex

	pose   spatialmath.Pose2D
	poseOK bool

	scan   lidar.RangeScan
	scanOK bool

	path        *Path
	pathVersion uint64

	linearLimit *atomic.Float64
}

// NewSnapshot returns an empty snapshot. The linear limit starts out unknown.
func NewSnapshot() *Snapshot {
	return &Snapshot{linearLimit: atomic.NewFloat64(math.NaN())}
}

// UpdatePose stores the latest localized pose.
func (s *Snapshot) UpdatePose(pose spatialmath.Pose2D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = pose
	s.poseOK = true
}

// UpdateScan stores a copy of the latest scan.
func (s *Snapshot) UpdateScan(scan lidar.RangeScan) {
	scan.Ranges = append([]float64(nil), scan.Ranges...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scan = scan
	s.scanOK = true
}

// UpdatePath stores a new global path.
func (s *Snapshot) UpdatePath(path *Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.pathVersion++
}

// UpdateLinearLimit stores the speed the base's controller last commanded, which caps the
// planner's forward speed.
func (s *Snapshot) UpdateLinearLimit(limit float64) {
	s.linearLimit.Store(limit)
}

// LatestPose returns the latest pose, if any.
func (s *Snapshot) LatestPose(ctx context.Context) (spatialmath.Pose2D, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose, s.poseOK, ctx.Err()
}

// LatestScan returns the latest scan, if any.
func (s *Snapshot) LatestScan(ctx context.Context) (lidar.RangeScan, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan, s.scanOK, ctx.Err()
}

// LatestPath returns the latest path with a version that changes on every UpdatePath.
func (s *Snapshot) LatestPath() (*Path, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path, s.pathVersion
}

// LinearLimit returns the latest linear limit, NaN if none arrived yet.
func (s *Snapshot) LinearLimit() float64 {
	return s.linearLimit.Load()
}
