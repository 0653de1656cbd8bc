package models

import (
	"time"
)

// MachineConfig is one distinct machine and software configuration, keyed by
// the fingerprint the client computes. Rows are created on first sighting and
// only LastSeen changes afterwards.
type MachineConfig struct {
	ID uint `gorm:"primarykey" json:"id"`

	Fingerprint string `gorm:"uniqueIndex;not null" json:"fingerprint"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`

	LastSeen time.Time `json:"last_seen"`

	IP string `json:"ip"`

	HardwareID string `gorm:"index" json:"hardware_id"`

	OS string `gorm:"index" json:"os"`

	OSVersion string `json:"os_version"`

	Product string `json:"product"`

	Version string `json:"version"`

	Revision string `json:"revision"`

	BuildDate string `json:"build_date"`

	Language string `json:"language"`

	// byte counts, zero when the client did not report them
	Memory int64 `json:"memory"`

	VideoMemory int64 `json:"video_memory"`

	DiskSpace int64 `json:"disk_space"`

	CPUs int `json:"cpus"`

	CPUType string `json:"cpu_type"`

	CPUSpeed int `json:"cpu_speed"`

	GPUVendor string `json:"gpu_vendor"`

	GPUName string `json:"gpu_name"`

	GPUDriver string `json:"gpu_driver"`

	ScreenWidth int `json:"screen_width"`

	ScreenHeight int `json:"screen_height"`
}

// LogSubmission records that a client log batch has been ingested for a
// machine config. The unique index is the dedup gate.
type LogSubmission struct {
	ID uint `gorm:"primarykey"`

	MachineConfigID uint `gorm:"not null;uniqueIndex:idx_log_submission_unique,priority:1"`

	LogID string `gorm:"not null;uniqueIndex:idx_log_submission_unique,priority:2"`

	CreatedAt time.Time
}
