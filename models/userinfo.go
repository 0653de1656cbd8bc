package models

import (
	"fmt"
	"time"

	"statsdb/bytesize"
)

// UserInfo is the configuration descriptor a client sends with every call.
// Every field is optional except the fingerprint.
type UserInfo struct {
	Fingerprint string `json:"machine_config_hash"`

	HardwareID string `json:"hardware_id"`

	OS string `json:"os"`

	OSVersion string `json:"os_version"`

	Product string `json:"product"`

	Version string `json:"version"`

	Revision string `json:"revision"`

	BuildDate string `json:"build_date"`

	Language string `json:"language"`

	// sizes such as "2.2 GB"
	Memory string `json:"memory"`

	VideoMemory string `json:"video_memory"`

	DiskSpace string `json:"disk_space"`

	CPUs int `json:"cpus"`

	CPUType string `json:"cpu_type"`

	CPUSpeed int `json:"cpu_speed"`

	GPUVendor string `json:"gpu_vendor"`

	GPUName string `json:"gpu_name"`

	GPUDriver string `json:"gpu_driver"`

	ScreenWidth int `json:"screen_width"`

	ScreenHeight int `json:"screen_height"`
}

// FieldError reports a descriptor field the server could not interpret.
type FieldError struct {
	Field string

	Err error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// MachineConfig builds the record stored on first sighting of the fingerprint.
func (u UserInfo) MachineConfig(remoteAddr string, now time.Time) (*MachineConfig, error) {

	if u.Fingerprint == "" {
		return nil, &FieldError{Field: "machine_config_hash", Err: fmt.Errorf("missing value")}
	}

	mc := &MachineConfig{

		Fingerprint: u.Fingerprint,

		CreatedAt: now,

		LastSeen: now,

		IP: remoteAddr,

		HardwareID: u.HardwareID,

		OS: u.OS,

		OSVersion: u.OSVersion,

		Product: u.Product,

		Version: u.Version,

		Revision: u.Revision,

		BuildDate: u.BuildDate,

		Language: u.Language,

		CPUs: u.CPUs,

		CPUType: u.CPUType,

		CPUSpeed: u.CPUSpeed,

		GPUVendor: u.GPUVendor,

		GPUName: u.GPUName,

		GPUDriver: u.GPUDriver,

		ScreenWidth: u.ScreenWidth,

		ScreenHeight: u.ScreenHeight,
	}

	sizes := []struct {
		field string
		raw   string
		dst   *int64
	}{
		{field: "memory", raw: u.Memory, dst: &mc.Memory},
		{field: "video_memory", raw: u.VideoMemory, dst: &mc.VideoMemory},
		{field: "disk_space", raw: u.DiskSpace, dst: &mc.DiskSpace},
	}

	for _, size := range sizes {

		n, _, err := bytesize.Parse(size.raw)

		if err != nil {
			return nil, &FieldError{Field: size.field, Err: err}
		}

		*size.dst = n
	}

	return mc, nil
}
