// Package resources owns every GPU-side resource of the engine.
//
// The Manager loads object textures keyed by object type, rasterizes overlay
// glyphs on demand, owns the main canvas surface and propagates canvas size
// changes to the components that store pixel-space geometry.
//
// Other components never hold textures across frames; they ask the Manager
// through accessor calls (ObjectTexture, GlyphTexture, Canvas) while drawing,
// which keeps Dispose safe at any time.
package resources

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNotInitialized is returned when a GPU resource is requested before Initialize.
	ErrNotInitialized = errors.New("resource manager not initialized")
	// ErrDisposed is returned after Dispose.
	ErrDisposed = errors.New("resource manager disposed")
)

// ResizeListener receives canvas size changes.
type ResizeListener interface {
	OnCanvasResize(oldWidth, oldHeight, newWidth, newHeight int)
}

// ResizeFunc adapts a function to ResizeListener.
type ResizeFunc func(oldWidth, oldHeight, newWidth, newHeight int)

// OnCanvasResize implements ResizeListener.
func (f ResizeFunc) OnCanvasResize(oldWidth, oldHeight, newWidth, newHeight int) {
	f(oldWidth, oldHeight, newWidth, newHeight)
}

// Counters are cumulative resource statistics.
type Counters struct {
	TexturesLoaded int
	LoadFailures   int
	Disposed       int
}

type objectTexture struct {
	objectType string
	tex        render.Texture
}

type pendingLoad struct {
	blueType, redType string
	handle            *LoadHandle
}

type loadResult struct {
	handle     *LoadHandle
	obj        types.ObjectID
	objectType string
	generation uint64
	img        image.Image
	err        error
}

// Manager is the Resource Lifecycle Manager.
//
// Lifecycle:
//  1. NewManager: requests are accepted immediately and queued.
//  2. Initialize(device): the pending queue is flushed exactly once.
//  3. Poll once per frame on the render thread: uploads decoded textures and
//     disposes textures replaced during the previous frame.
//  4. Dispose: releases everything, idempotent.
//
// Thread Safety Note:
// Only image decoding runs in background goroutines. Every other method must be
// called from the render thread.
//
// Usage:
//
//	rm := resources.NewManager(source, glyphs)
//	rm.SetCanvasSize(640, 640)
//	h := rm.LoadObjectTextures("staff", "hoop") // queued
//	if err := rm.Initialize(device); err != nil {
//	    log.Printf("renderer unavailable: %v", err)
//	}
//	// every frame:
//	rm.Poll()
type Manager struct {
	source TextureSource
	glyphs *GlyphRasterizer

	device      render.Device
	initialized bool
	disposed    bool

	pending []pendingLoad
	active  []*LoadHandle

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	results chan loadResult

	generation [types.ObjectCount]uint64
	requested  [types.ObjectCount]string
	textures   [types.ObjectCount]objectTexture
	retired    []render.Texture

	glyphCache map[string]render.Texture

	canvas        render.Surface
	width, height int
	listeners     []ResizeListener

	counters Counters
	tracer   trace.Tracer
}

// NewManager creates a Manager.
//
// Parameters:
//   - source: decodes object images; nil means objects always use the placeholder.
//   - glyphs: rasterizes overlay labels; nil disables glyph textures.
func NewManager(source TextureSource, glyphs *GlyphRasterizer) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		source:     source,
		glyphs:     glyphs,
		ctx:        ctx,
		cancel:     cancel,
		results:    make(chan loadResult, 2*types.ObjectCount),
		glyphCache: make(map[string]render.Texture),
		tracer:     otel.Tracer("github.com/decker502/seqanim/resources"),
	}
}

// Initialize binds the Manager to a device, allocates the canvas (if a size is
// known) and flushes queued load requests. Subsequent calls are no-ops.
//
// Returns:
//   - ErrDisposed after Dispose.
//   - An error if the canvas surface cannot be allocated; the Manager stays
//     uninitialized and requests remain queued.
func (rm *Manager) Initialize(device render.Device) error {
	if rm.disposed {
		return ErrDisposed
	}
	if rm.initialized {
		return nil
	}
	if device == nil {
		return fmt.Errorf("%w: nil device", ErrNotInitialized)
	}
	if rm.width > 0 && rm.height > 0 {
		canvas, err := device.NewSurface(rm.width, rm.height)
		if err != nil {
			return fmt.Errorf("failed to allocate canvas %dx%d: %w", rm.width, rm.height, err)
		}
		rm.canvas = canvas
	}
	rm.device = device
	rm.initialized = true

	queue := rm.pending
	rm.pending = nil
	if len(queue) > 0 {
		log.Printf("[ResourceManager] Initialized on %s device, flushing %d queued load request(s)", device.Name(), len(queue))
	}
	for _, p := range queue {
		rm.start(p.blueType, p.redType, p.handle)
	}
	return nil
}

// Initialized reports whether Initialize succeeded and Dispose has not been called.
func (rm *Manager) Initialized() bool {
	return rm.initialized
}

// Device returns the bound device, or nil before Initialize.
func (rm *Manager) Device() render.Device {
	return rm.device
}

// LoadObjectTextures requests the textures for both objects.
//
// Before Initialize the request is queued (never dropped). A type that is
// already loaded or already requested for an object is not reloaded. The
// texture currently on screen stays visible until its replacement is uploaded;
// the replaced texture is disposed one frame later.
func (rm *Manager) LoadObjectTextures(blueType, redType string) *LoadHandle {
	h := newLoadHandle(blueType, redType)
	if rm.disposed {
		h.fail(ErrDisposed)
		h.resolve()
		return h
	}
	if !rm.initialized {
		rm.pending = append(rm.pending, pendingLoad{blueType: blueType, redType: redType, handle: h})
		return h
	}
	rm.start(blueType, redType, h)
	return h
}

// PendingRequests returns the number of queued requests waiting for Initialize.
func (rm *Manager) PendingRequests() int {
	return len(rm.pending)
}

func (rm *Manager) start(blueType, redType string, h *LoadHandle) {
	want := [types.ObjectCount]string{types.Blue: blueType, types.Red: redType}
	for _, obj := range types.Objects {
		objectType := want[obj]
		if objectType == rm.requested[obj] {
			continue
		}
		rm.requested[obj] = objectType
		rm.generation[obj]++

		if objectType == "" || rm.source == nil {
			// 不需要纹理：回到占位图形
			rm.replace(obj, objectTexture{objectType: objectType})
			continue
		}
		h.remaining++
		rm.wg.Add(1)
		go rm.decode(h, obj, objectType, rm.generation[obj])
	}
	if h.remaining == 0 {
		h.resolve()
		return
	}
	rm.active = append(rm.active, h)
}

func (rm *Manager) decode(h *LoadHandle, obj types.ObjectID, objectType string, gen uint64) {
	defer rm.wg.Done()
	ctx, span := rm.tracer.Start(rm.ctx, "resources.load_texture", trace.WithAttributes(
		attribute.String("object", obj.String()),
		attribute.String("object.type", objectType),
	))
	img, err := rm.source.Load(ctx, objectType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	select {
	case rm.results <- loadResult{handle: h, obj: obj, objectType: objectType, generation: gen, img: img, err: err}:
	case <-rm.ctx.Done():
	}
}

// Poll runs once per frame on the render thread. It disposes the textures that
// were replaced during the previous frame, then uploads every decoded image
// that is ready. Returns the number of load results processed.
func (rm *Manager) Poll() int {
	if rm.disposed {
		return 0
	}
	for _, tex := range rm.retired {
		rm.disposeTexture(tex)
	}
	rm.retired = rm.retired[:0]

	n := 0
	for {
		select {
		case res := <-rm.results:
			rm.apply(res)
			n++
		default:
			if n > 0 {
				rm.pruneActive()
			}
			return n
		}
	}
}

func (rm *Manager) pruneActive() {
	kept := rm.active[:0]
	for _, h := range rm.active {
		if !h.Resolved() {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(rm.active); i++ {
		rm.active[i] = nil
	}
	rm.active = kept
}

func (rm *Manager) apply(res loadResult) {
	defer res.handle.settle()

	if res.generation != rm.generation[res.obj] {
		// 已被更新的请求取代
		return
	}
	if res.err != nil {
		rm.loadFailed(res, res.err)
		return
	}
	tex, err := rm.device.NewTexture(res.img)
	if err != nil {
		rm.loadFailed(res, fmt.Errorf("failed to upload texture %q: %w", res.objectType, err))
		return
	}
	rm.counters.TexturesLoaded++
	rm.replace(res.obj, objectTexture{objectType: res.objectType, tex: tex})
	log.Printf("[ResourceManager] Loaded texture %q for %s", res.objectType, res.obj)
}

// loadFailed 记录失败并回到占位图形，直到下一次显式加载才重试
func (rm *Manager) loadFailed(res loadResult, err error) {
	rm.counters.LoadFailures++
	res.handle.fail(err)
	log.Printf("[ResourceManager] Failed to load texture %q for %s, using placeholder: %v", res.objectType, res.obj, err)
	rm.replace(res.obj, objectTexture{objectType: res.objectType})
	// 允许对同一类型再次显式请求
	rm.requested[res.obj] = ""
}

// replace 安装新纹理，旧纹理在下一帧 Poll 时释放
func (rm *Manager) replace(obj types.ObjectID, next objectTexture) {
	if old := rm.textures[obj].tex; old != nil && old != next.tex {
		rm.retired = append(rm.retired, old)
	}
	rm.textures[obj] = next
}

func (rm *Manager) disposeTexture(tex render.Texture) {
	if tex == nil || tex.Disposed() {
		return
	}
	tex.Dispose()
	rm.counters.Disposed++
}

// ObjectTexture returns the texture currently shown for obj, or nil for the placeholder.
func (rm *Manager) ObjectTexture(obj types.ObjectID) render.Texture {
	if !obj.Valid() || rm.disposed {
		return nil
	}
	return rm.textures[obj].tex
}

// ObjectType returns the object type of the texture currently shown for obj.
func (rm *Manager) ObjectType(obj types.ObjectID) string {
	if !obj.Valid() {
		return ""
	}
	return rm.textures[obj].objectType
}

// GlyphTexture returns the overlay texture for label, rasterizing it on first use.
// Failed labels are cached as nil and not retried.
func (rm *Manager) GlyphTexture(label string) render.Texture {
	if !rm.initialized || rm.glyphs == nil || label == "" {
		return nil
	}
	if tex, ok := rm.glyphCache[label]; ok {
		return tex
	}
	img, err := rm.glyphs.Rasterize(label)
	var tex render.Texture
	if err == nil {
		tex, err = rm.device.NewTexture(img)
	}
	if err != nil {
		log.Printf("[ResourceManager] Failed to rasterize glyph %q: %v", label, err)
		tex = nil
	}
	rm.glyphCache[label] = tex
	return tex
}

// SetCanvasSize records the canvas pixel size. When the size changes the
// canvas surface is re-allocated (the old one disposed) and every
// ResizeListener is notified with the old and new sizes.
func (rm *Manager) SetCanvasSize(width, height int) error {
	if rm.disposed {
		return ErrDisposed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", render.ErrInvalidSize, width, height)
	}
	if width == rm.width && height == rm.height {
		return nil
	}
	if rm.initialized {
		canvas, err := rm.device.NewSurface(width, height)
		if err != nil {
			return fmt.Errorf("failed to allocate canvas %dx%d: %w", width, height, err)
		}
		if rm.canvas != nil {
			rm.canvas.Dispose()
		}
		rm.canvas = canvas
	}
	oldW, oldH := rm.width, rm.height
	rm.width, rm.height = width, height
	for _, l := range rm.listeners {
		l.OnCanvasResize(oldW, oldH, width, height)
	}
	return nil
}

// CanvasSize returns the current canvas pixel size.
func (rm *Manager) CanvasSize() (int, int) {
	return rm.width, rm.height
}

// Canvas returns the main canvas surface, or nil before Initialize.
func (rm *Manager) Canvas() render.Surface {
	if rm.disposed {
		return nil
	}
	return rm.canvas
}

// AddResizeListener registers a consumer of pixel-space geometry.
func (rm *Manager) AddResizeListener(l ResizeListener) {
	if l != nil {
		rm.listeners = append(rm.listeners, l)
	}
}

// AllocateSurface creates an off-screen surface, e.g. for a pre-rendered frame.
// The caller owns the surface and must Dispose it.
func (rm *Manager) AllocateSurface(width, height int) (render.Surface, error) {
	if rm.disposed {
		return nil, ErrDisposed
	}
	if !rm.initialized {
		return nil, ErrNotInitialized
	}
	return rm.device.NewSurface(width, height)
}

// Counters returns cumulative statistics.
func (rm *Manager) Counters() Counters {
	return rm.counters
}

// Dispose stops background decoding and releases every GPU resource: object
// textures, textures awaiting deferred disposal, glyph textures and the canvas.
// Queued requests resolve with ErrDisposed. Safe to call more than once.
func (rm *Manager) Dispose() {
	if rm.disposed {
		return
	}
	rm.disposed = true
	rm.cancel()
	rm.wg.Wait()

	// 丢弃已解码但未上传的结果
drain:
	for {
		select {
		case <-rm.results:
		default:
			break drain
		}
	}
	for _, h := range rm.active {
		if !h.Resolved() {
			h.fail(ErrDisposed)
			h.resolve()
		}
	}
	rm.active = nil
	for _, p := range rm.pending {
		p.handle.fail(ErrDisposed)
		p.handle.resolve()
	}
	rm.pending = nil

	for _, tex := range rm.retired {
		rm.disposeTexture(tex)
	}
	rm.retired = nil
	for _, obj := range types.Objects {
		rm.disposeTexture(rm.textures[obj].tex)
		rm.textures[obj] = objectTexture{}
	}
	for label, tex := range rm.glyphCache {
		rm.disposeTexture(tex)
		delete(rm.glyphCache, label)
	}
	if rm.canvas != nil {
		rm.canvas.Dispose()
		rm.canvas = nil
	}
	if rm.glyphs != nil {
		rm.glyphs.Close()
	}
	rm.initialized = false
	rm.listeners = nil
	log.Printf("[ResourceManager] Disposed (%d textures released)", rm.counters.Disposed)
}
