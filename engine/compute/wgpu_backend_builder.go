package compute

// wgpuBackendConfig holds construction-time settings for the WebGPU backend.
type wgpuBackendConfig struct {
	forceFallbackAdapter bool
}

// WGPUBackendOption configures NewWGPUBackend.
type WGPUBackendOption func(*wgpuBackendConfig)

// WithForceFallbackAdapter forces selection of the software fallback adapter,
// useful on machines without a usable GPU driver.
//
// Returns:
//   - WGPUBackendOption: the configured option
func WithForceFallbackAdapter() WGPUBackendOption {
	return func(cfg *wgpuBackendConfig) {
		cfg.forceFallbackAdapter = true
	}
}
