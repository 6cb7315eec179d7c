package engine

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

var reportOnce sync.Once

// DeviceInfo describes the host CPU.
type DeviceInfo struct {
	Brand    string
	Cores    int
	Threads  int
	AVX2     bool
	AVX512   bool
	NEON     bool
	MaxProcs int
}

// Device returns information about the host CPU.
func Device() DeviceInfo {
	return DeviceInfo{
		Brand:    cpuid.CPU.BrandName,
		Cores:    cpuid.CPU.PhysicalCores,
		Threads:  cpuid.CPU.LogicalCores,
		AVX2:     cpuid.CPU.Supports(cpuid.AVX2),
		AVX512:   cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
		NEON:     cpuid.CPU.Supports(cpuid.ASIMD),
		MaxProcs: runtime.GOMAXPROCS(0),
	}
}

// ReportDevice logs the host CPU once per process.
func ReportDevice(logger *slog.Logger, devices []int) {
	reportOnce.Do(func() {
		d := Device()
		logger.Info("compute device",
			"cpu", d.Brand,
			"cores", d.Cores,
			"threads", d.Threads,
			"avx2", d.AVX2,
			"avx512", d.AVX512,
			"neon", d.NEON,
			"devices", devices)
	})
}
