package inference

import (
	"fmt"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

// Device selects the execution provider a session runs on. Sessions try the
// candidates of a Device in order and keep the first that initializes.
type Device interface {
	String() string
	candidates() []provider
}

type provider interface {
	name() string
	apply(opts *ort.SessionOptions) error
}

type cpuProvider struct{}

func (cpuProvider) name() string                     { return "cpu" }
func (cpuProvider) apply(*ort.SessionOptions) error { return nil }

type cudaProvider struct{ id int }

func (p cudaProvider) name() string { return "cuda:" + strconv.Itoa(p.id) }

func (p cudaProvider) apply(opts *ort.SessionOptions) error {
	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("creating CUDA options: %w", err)
	}
	defer func() { _ = cudaOpts.Destroy() }()

	if err := cudaOpts.Update(map[string]string{"device_id": strconv.Itoa(p.id)}); err != nil {
		return fmt.Errorf("configuring CUDA device %d: %w", p.id, err)
	}
	return opts.AppendExecutionProviderCUDA(cudaOpts)
}

type fixedDevice struct{ p provider }

func (d fixedDevice) String() string          { return d.p.name() }
func (d fixedDevice) candidates() []provider { return []provider{d.p} }

type autoDevice struct{}

func (autoDevice) String() string { return "auto" }
func (autoDevice) candidates() []provider {
	return []provider{cudaProvider{id: 0}, cpuProvider{}}
}

// CPU runs on the default CPU execution provider.
func CPU() Device { return fixedDevice{cpuProvider{}} }

// CUDA runs on the given GPU and fails if CUDA is unavailable.
func CUDA(id int) Device { return fixedDevice{cudaProvider{id: id}} }

// Auto prefers GPU 0 and falls back to CPU.
func Auto() Device { return autoDevice{} }

// ParseDevice maps "cpu", "cuda", "cuda:N" and "auto" to a Device.
func ParseDevice(s string) (Device, error) {
	switch s {
	case "", "auto":
		return Auto(), nil
	case "cpu":
		return CPU(), nil
	case "cuda", "gpu":
		return CUDA(0), nil
	}
	var id int
	if _, err := fmt.Sscanf(s, "cuda:%d", &id); err == nil && id >= 0 {
		return CUDA(id), nil
	}
	return nil, fmt.Errorf("unknown device %q", s)
}
