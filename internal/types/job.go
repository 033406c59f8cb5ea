package types

import (
	"fmt"
	"time"
)

// =============================================================================
// RECONSTRUCTION JOBS
// =============================================================================

// JobStatus is the lifecycle state of a reconstruction job.
type JobStatus string

const (
	// JobPending is reserved for a queued-but-not-started interval. Nothing produces it today.
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Resolution is the reconstruction output resolution in pixels.
type Resolution string

const (
	Resolution512  Resolution = "512"
	Resolution1024 Resolution = "1024"
	Resolution2048 Resolution = "2048"
)

// ReconstructionMode selects the output geometry.
type ReconstructionMode string

const (
	ModePointCloud ReconstructionMode = "pointcloud"
	ModeMesh       ReconstructionMode = "mesh"
)

// CameraIntrinsics selects how camera parameters are obtained.
type CameraIntrinsics string

const (
	IntrinsicsAuto   CameraIntrinsics = "auto"
	IntrinsicsManual CameraIntrinsics = "manual"
)

// Optimization trades speed against quality.
type Optimization string

const (
	OptimizeSpeed   Optimization = "speed"
	OptimizeQuality Optimization = "quality"
)

// Enumerations used by the advice schema and validators.
var (
	Resolutions   = []string{string(Resolution512), string(Resolution1024), string(Resolution2048)}
	Modes         = []string{string(ModePointCloud), string(ModeMesh)}
	Intrinsics    = []string{string(IntrinsicsAuto), string(IntrinsicsManual)}
	Optimizations = []string{string(OptimizeSpeed), string(OptimizeQuality)}
)

// JobSettings are the user- or advice-chosen reconstruction parameters.
type JobSettings struct {
	Resolution       Resolution         `json:"resolution" yaml:"resolution"`
	Mode             ReconstructionMode `json:"mode" yaml:"mode"`
	CameraIntrinsics CameraIntrinsics   `json:"cameraIntrinsics" yaml:"camera_intrinsics"`
	Optimization     Optimization       `json:"optimization" yaml:"optimization"`
}

// DefaultJobSettings is the safe fallback used when advice cannot be parsed.
func DefaultJobSettings() JobSettings {
	return JobSettings{
		Resolution:       Resolution1024,
		Mode:             ModePointCloud,
		CameraIntrinsics: IntrinsicsAuto,
		Optimization:     OptimizeQuality,
	}
}

// Validate checks every field against its enumeration.
func (s JobSettings) Validate() error {
	if !contains(Resolutions, string(s.Resolution)) {
		return fmt.Errorf("invalid resolution %q", s.Resolution)
	}
	if !contains(Modes, string(s.Mode)) {
		return fmt.Errorf("invalid mode %q", s.Mode)
	}
	if !contains(Intrinsics, string(s.CameraIntrinsics)) {
		return fmt.Errorf("invalid camera intrinsics %q", s.CameraIntrinsics)
	}
	if !contains(Optimizations, string(s.Optimization)) {
		return fmt.Errorf("invalid optimization %q", s.Optimization)
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ReconstructionJob is a user-initiated unit of work turning images into a 3D representation.
type ReconstructionJob struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ImageCount int         `json:"image_count"`
	Status     JobStatus   `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	Settings   JobSettings `json:"settings"`
	ResultURL  string      `json:"result_url,omitempty"`
	// FailureReason is set only alongside JobFailed.
	FailureReason string `json:"failure_reason,omitempty"`
}
