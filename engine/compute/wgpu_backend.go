package compute

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// lifeStepSource is the WGSL rule kernel: one invocation per cell, reading
// "current" and writing "next".
//
//go:embed assets/life_step.wgsl
var lifeStepSource string

// populationSource is the WGSL population reduction over the "next" buffer.
//
//go:embed assets/population.wgsl
var populationSource string

// workgroupEdge is the per-axis workgroup size of both kernels. Must match the
// @workgroup_size attribute in the WGSL sources.
const workgroupEdge = 4

type wgpuBackendImpl struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	layout       *wgpu.BindGroupLayout
	stepPipeline *wgpu.ComputePipeline
	popPipeline  *wgpu.ComputePipeline
}

var _ Backend = &wgpuBackendImpl{}

// NewWGPUBackend brings up a headless WebGPU compute backend: instance,
// adapter (no surface), device, queue, and the two compute pipelines. Any
// failure here is a construction failure; the returned backend is unusable
// and nothing needs releasing.
//
// Parameters:
//   - options: a variadic list of options to configure the backend
//
// Returns:
//   - Backend: the configured backend
//   - error: non-nil if adapter, device, or pipeline creation failed
func NewWGPUBackend(options ...WGPUBackendOption) (Backend, error) {
	runtime.LockOSThread()

	cfg := &wgpuBackendConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	b := &wgpuBackendImpl{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
	}

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
	})
	if err != nil {
		return nil, fmt.Errorf("compute: failed to acquire adapter: %w", err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Automaton Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compute: failed to acquire device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	if err := b.createPipelines(); err != nil {
		b.Release()
		return nil, err
	}

	return b, nil
}

// createPipelines builds the shared bind group layout and both compute
// pipelines. The layout carries all four bindings; each kernel uses the
// subset it declares.
func (b *wgpuBackendImpl) createPipelines() error {
	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Automaton State Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageCompute,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageCompute,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStageCompute,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("compute: failed to create bind group layout: %w", err)
	}
	b.layout = layout

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Automaton Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("compute: failed to create pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	build := func(label, source string) (*wgpu.ComputePipeline, error) {
		module, moduleErr := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label: label,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: source,
			},
		})
		if moduleErr != nil {
			return nil, fmt.Errorf("compute: failed to create %s module: %w", label, moduleErr)
		}
		defer module.Release()

		created, pipeErr := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  label + " Compute Pipeline",
			Layout: pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: "main",
			},
		})
		if pipeErr != nil {
			return nil, fmt.Errorf("compute: failed to create %s pipeline: %w", label, pipeErr)
		}
		return created, nil
	}

	if b.stepPipeline, err = build("Life Step", lifeStepSource); err != nil {
		return err
	}
	if b.popPipeline, err = build("Population", populationSource); err != nil {
		return err
	}
	return nil
}

// wgpuStatePair owns the device resources for one grid: the two state
// buffers, the uniform params buffer, the population counter, the MapRead
// staging buffers, and a bind group per buffer orientation so Swap is an
// index flip.
type wgpuStatePair struct {
	cellCount int
	current   int

	states     [2]*wgpu.Buffer
	params     *wgpu.Buffer
	counter    *wgpu.Buffer
	staging    *wgpu.Buffer // full-state read-back, MapRead|CopyDst
	wordOut    *wgpu.Buffer // 4-byte read-back for point reads and the counter
	bindGroups [2]*wgpu.BindGroup
}

var _ StatePair = &wgpuStatePair{}

func (p *wgpuStatePair) Swap() {
	p.current = 1 - p.current
}

func (p *wgpuStatePair) CellCount() int {
	return p.cellCount
}

func (p *wgpuStatePair) Release() {
	for _, bg := range p.bindGroups {
		if bg != nil {
			bg.Release()
		}
	}
	for i, buf := range p.states {
		if buf != nil {
			buf.Release()
			p.states[i] = nil
		}
	}
	for _, buf := range []*wgpu.Buffer{p.params, p.counter, p.staging, p.wordOut} {
		if buf != nil {
			buf.Release()
		}
	}
	p.params, p.counter, p.staging, p.wordOut = nil, nil, nil, nil
}

func (b *wgpuBackendImpl) AllocateStates(cellCount int) (StatePair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cellCount <= 0 {
		return nil, fmt.Errorf("compute: invalid cell count %d", cellCount)
	}

	p := &wgpuStatePair{cellCount: cellCount}
	byteSize := uint64(cellCount) * 4

	release := func() { p.Release() }

	for i := range p.states {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("Cell State %d", i),
			Size:  byteSize,
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			release()
			return nil, fmt.Errorf("compute: failed to allocate state buffer: %w", err)
		}
		p.states[i] = buf
	}

	var err error
	p.params, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Kernel Params",
		Size:  paramsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("compute: failed to allocate params buffer: %w", err)
	}

	p.counter, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Population Counter",
		Size:  4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("compute: failed to allocate counter buffer: %w", err)
	}

	p.staging, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "State Staging",
		Size:  byteSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("compute: failed to allocate staging buffer: %w", err)
	}

	p.wordOut, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Word Staging",
		Size:  4,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("compute: failed to allocate word staging buffer: %w", err)
	}

	// Orientation i: current = states[i], next = states[1-i].
	for i := range p.bindGroups {
		bg, bgErr := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("Cell State Bind Group %d", i),
			Layout: b.layout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: p.params, Size: paramsSize},
				{Binding: 1, Buffer: p.states[i], Size: byteSize},
				{Binding: 2, Buffer: p.states[1-i], Size: byteSize},
				{Binding: 3, Buffer: p.counter, Size: 4},
			},
		})
		if bgErr != nil {
			release()
			return nil, fmt.Errorf("compute: failed to create bind group: %w", bgErr)
		}
		p.bindGroups[i] = bg
	}

	return p, nil
}

func (b *wgpuBackendImpl) Upload(states StatePair, data []uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pair(states)
	if err != nil {
		return err
	}
	if len(data) != p.cellCount {
		return fmt.Errorf("compute: upload size %d does not match cell count %d", len(data), p.cellCount)
	}
	b.queue.WriteBuffer(p.states[p.current], 0, wordsToBytes(data))
	return nil
}

func (b *wgpuBackendImpl) Download(states StatePair, dst []uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pair(states)
	if err != nil {
		return err
	}
	if len(dst) != p.cellCount {
		return fmt.Errorf("compute: download size %d does not match cell count %d", len(dst), p.cellCount)
	}

	byteSize := uint64(p.cellCount) * 4
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("compute: failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	encoder.CopyBufferToBuffer(p.states[p.current], 0, p.staging, 0, byteSize)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("compute: failed to finish read-back commands: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	raw, err := b.mapRead(p.staging, byteSize)
	if err != nil {
		return err
	}
	bytesToWords(raw, dst)
	return nil
}

func (b *wgpuBackendImpl) WriteCell(states StatePair, index int, alive bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pair(states)
	if err != nil {
		return err
	}
	if index < 0 || index >= p.cellCount {
		return fmt.Errorf("compute: cell index %d out of range", index)
	}

	word := make([]byte, 4)
	if alive {
		binary.LittleEndian.PutUint32(word, 1)
	}
	b.queue.WriteBuffer(p.states[p.current], uint64(index)*4, word)
	return nil
}

func (b *wgpuBackendImpl) ReadCell(states StatePair, index int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pair(states)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= p.cellCount {
		return false, fmt.Errorf("compute: cell index %d out of range", index)
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return false, fmt.Errorf("compute: failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	encoder.CopyBufferToBuffer(p.states[p.current], uint64(index)*4, p.wordOut, 0, 4)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return false, fmt.Errorf("compute: failed to finish read-back commands: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	raw, err := b.mapRead(p.wordOut, 4)
	if err != nil {
		return false, err
	}
	return binary.LittleEndian.Uint32(raw) == 1, nil
}

func (b *wgpuBackendImpl) Step(states StatePair, params KernelParams) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pair(states)
	if err != nil {
		return 0, err
	}
	if params.CellCount() != p.cellCount {
		return 0, fmt.Errorf("compute: params cover %d cells, pair holds %d", params.CellCount(), p.cellCount)
	}

	b.queue.WriteBuffer(p.params, 0, params.Marshal())
	b.queue.WriteBuffer(p.counter, 0, make([]byte, 4))

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return 0, fmt.Errorf("compute: failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	groupsX := (params.Width + workgroupEdge - 1) / workgroupEdge
	groupsY := (params.Height + workgroupEdge - 1) / workgroupEdge
	groupsZ := (params.Depth + workgroupEdge - 1) / workgroupEdge
	bindGroup := p.bindGroups[p.current]

	// The rule pass and the reduction pass are encoded back to back; WebGPU
	// orders storage writes between compute passes within one submission.
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(b.stepPipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(groupsX, groupsY, groupsZ)
	pass.End()

	popPass := encoder.BeginComputePass(nil)
	popPass.SetPipeline(b.popPipeline)
	popPass.SetBindGroup(0, bindGroup, nil)
	popPass.DispatchWorkgroups(groupsX, groupsY, groupsZ)
	popPass.End()

	encoder.CopyBufferToBuffer(p.counter, 0, p.wordOut, 0, 4)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return 0, fmt.Errorf("compute: failed to finish step commands: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	// Mapping the counter staging buffer doubles as the completion barrier:
	// the map cannot succeed until every write in the submission is visible.
	raw, err := b.mapRead(p.wordOut, 4)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(raw)), nil
}

func (b *wgpuBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stepPipeline != nil {
		b.stepPipeline.Release()
		b.stepPipeline = nil
	}
	if b.popPipeline != nil {
		b.popPipeline.Release()
		b.popPipeline = nil
	}
	if b.layout != nil {
		b.layout.Release()
		b.layout = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// pair asserts that the StatePair was allocated by this backend.
func (b *wgpuBackendImpl) pair(states StatePair) (*wgpuStatePair, error) {
	p, ok := states.(*wgpuStatePair)
	if !ok || p == nil {
		return nil, fmt.Errorf("compute: state pair was not allocated by this backend")
	}
	return p, nil
}

// mapRead blocks until the device is idle, maps the buffer for reading, and
// returns a copy of its contents.
func (b *wgpuBackendImpl) mapRead(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	var status wgpu.BufferMapAsyncStatus = wgpu.BufferMapAsyncStatusUnknown
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, fmt.Errorf("compute: map request failed: %w", err)
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("compute: buffer map failed with status %v", status)
	}
	defer buf.Unmap()

	out := make([]byte, size)
	copy(out, buf.GetMappedRange(0, uint(size)))
	return out, nil
}

func wordsToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func bytesToWords(raw []byte, dst []uint32) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
}
