package resources

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/types"
)

// gatedSource is a TextureSource whose loads can be held back per type.
type gatedSource struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	fail  map[string]error
	calls map[string]int
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		gates: make(map[string]chan struct{}),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (s *gatedSource) hold(objectType string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[objectType] = ch
	return ch
}

func (s *gatedSource) callCount(objectType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[objectType]
}

func (s *gatedSource) Load(ctx context.Context, objectType string) (image.Image, error) {
	s.mu.Lock()
	s.calls[objectType]++
	gate := s.gates[objectType]
	err := s.fail[objectType]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 8)), nil
}

func newTestManager(t *testing.T, source TextureSource) (*Manager, *render.Stats) {
	t.Helper()
	stats := &render.Stats{}
	rm := NewManager(source, nil)
	if err := rm.SetCanvasSize(32, 32); err != nil {
		t.Fatalf("SetCanvasSize error: %v", err)
	}
	if err := rm.Initialize(render.NewRasterDevice(stats)); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	t.Cleanup(rm.Dispose)
	return rm, stats
}

// waitPoll polls on the "render thread" until the handle resolves.
func waitPoll(t *testing.T, rm *Manager, h *LoadHandle) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rm.Poll()
		if h.Resolved() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("load handle did not resolve")
}

func TestManager_QueuedBeforeInitialize(t *testing.T) {
	src := newGatedSource()
	rm := NewManager(src, nil)
	defer rm.Dispose()

	h := rm.LoadObjectTextures("staff", "hoop")
	if rm.PendingRequests() != 1 || h.Resolved() {
		t.Fatalf("PendingRequests() = %d, resolved = %v", rm.PendingRequests(), h.Resolved())
	}
	if rm.Poll() != 0 {
		t.Error("Poll before Initialize processed results")
	}

	if err := rm.Initialize(render.NewRasterDevice(nil)); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if rm.PendingRequests() != 0 {
		t.Errorf("queue not flushed: %d", rm.PendingRequests())
	}
	waitPoll(t, rm, h)

	if h.Err() != nil {
		t.Errorf("Err() = %v", h.Err())
	}
	for _, obj := range types.Objects {
		if rm.ObjectTexture(obj) == nil {
			t.Errorf("%s texture missing after flush", obj)
		}
	}
	if rm.ObjectType(types.Red) != "hoop" {
		t.Errorf("ObjectType(red) = %q", rm.ObjectType(types.Red))
	}

	// 再次初始化不会重复刷新队列
	if err := rm.Initialize(render.NewRasterDevice(nil)); err != nil {
		t.Errorf("second Initialize error: %v", err)
	}
	if src.callCount("staff") != 1 {
		t.Errorf("staff loaded %d times, want 1", src.callCount("staff"))
	}
}

// TestManager_ReplaceDisposesOldAfterNextFrame 对象类型从 A 换成 B
func TestManager_ReplaceDisposesOldAfterNextFrame(t *testing.T) {
	src := newGatedSource()
	rm, stats := newTestManager(t, src)

	waitPoll(t, rm, rm.LoadObjectTextures("A", ""))
	texA := rm.ObjectTexture(types.Blue)
	if texA == nil {
		t.Fatal("texture A not loaded")
	}

	gate := src.hold("B")
	h := rm.LoadObjectTextures("B", "")
	for i := 0; i < 3; i++ {
		rm.Poll()
	}
	if rm.ObjectTexture(types.Blue) != texA || texA.Disposed() {
		t.Fatal("old texture must stay visible until the replacement is ready")
	}

	close(gate)
	waitPoll(t, rm, h)
	texB := rm.ObjectTexture(types.Blue)
	if texB == nil || texB == texA {
		t.Fatal("texture B not installed")
	}
	if texA.Disposed() {
		t.Error("old texture disposed before the next frame")
	}

	rm.Poll()
	if !texA.Disposed() {
		t.Error("old texture not disposed one frame after replacement")
	}
	// 画布 + B
	if got := stats.Live(); got != 2 {
		t.Errorf("live resources = %d, want 2", got)
	}
	if rm.Counters().Disposed != 1 {
		t.Errorf("Counters().Disposed = %d, want 1", rm.Counters().Disposed)
	}
}

func TestManager_SameTypeNotReloaded(t *testing.T) {
	src := newGatedSource()
	rm, _ := newTestManager(t, src)

	waitPoll(t, rm, rm.LoadObjectTextures("A", "B"))
	h := rm.LoadObjectTextures("A", "B")
	if !h.Resolved() {
		t.Error("request for already loaded types should resolve immediately")
	}
	if src.callCount("A") != 1 || src.callCount("B") != 1 {
		t.Errorf("calls A=%d B=%d, want 1 each", src.callCount("A"), src.callCount("B"))
	}
}

func TestManager_FailureKeepsPlaceholder(t *testing.T) {
	src := newGatedSource()
	errMissing := errors.New("missing asset")
	src.fail["broken"] = errMissing
	rm, _ := newTestManager(t, src)

	h := rm.LoadObjectTextures("broken", "")
	waitPoll(t, rm, h)

	if !errors.Is(h.Err(), errMissing) {
		t.Errorf("Err() = %v, want %v", h.Err(), errMissing)
	}
	if rm.ObjectTexture(types.Blue) != nil {
		t.Error("failed load should leave the placeholder")
	}
	if rm.Counters().LoadFailures != 1 {
		t.Errorf("LoadFailures = %d", rm.Counters().LoadFailures)
	}

	// 不会自动重试
	for i := 0; i < 5; i++ {
		rm.Poll()
	}
	if src.callCount("broken") != 1 {
		t.Errorf("source called %d times without an explicit load", src.callCount("broken"))
	}

	// 显式再次加载会重试
	delete(src.fail, "broken")
	waitPoll(t, rm, rm.LoadObjectTextures("broken", ""))
	if rm.ObjectTexture(types.Blue) == nil {
		t.Error("explicit retry did not load the texture")
	}
}

func TestManager_SupersededRequestIgnored(t *testing.T) {
	src := newGatedSource()
	rm, _ := newTestManager(t, src)

	gate := src.hold("slow")
	h1 := rm.LoadObjectTextures("slow", "")
	h2 := rm.LoadObjectTextures("fast", "")
	waitPoll(t, rm, h2)

	close(gate)
	waitPoll(t, rm, h1)

	if rm.ObjectType(types.Blue) != "fast" {
		t.Errorf("ObjectType = %q, want the latest request", rm.ObjectType(types.Blue))
	}
	if rm.Counters().TexturesLoaded != 1 {
		t.Errorf("TexturesLoaded = %d, want stale result discarded", rm.Counters().TexturesLoaded)
	}
}

func TestManager_CanvasResize(t *testing.T) {
	rm, stats := newTestManager(t, nil)

	var calls [][4]int
	rm.AddResizeListener(ResizeFunc(func(ow, oh, nw, nh int) {
		calls = append(calls, [4]int{ow, oh, nw, nh})
	}))

	old := rm.Canvas()
	if old == nil {
		t.Fatal("canvas not allocated by Initialize")
	}
	if err := rm.SetCanvasSize(64, 48); err != nil {
		t.Fatalf("SetCanvasSize error: %v", err)
	}
	if !old.Disposed() {
		t.Error("previous canvas not disposed")
	}
	if w, h := rm.Canvas().Size(); w != 64 || h != 48 {
		t.Errorf("canvas size = %dx%d", w, h)
	}
	if err := rm.SetCanvasSize(64, 48); err != nil {
		t.Errorf("same size error: %v", err)
	}
	if len(calls) != 1 || calls[0] != [4]int{32, 32, 64, 48} {
		t.Errorf("listener calls = %v", calls)
	}
	if err := rm.SetCanvasSize(0, 10); !errors.Is(err, render.ErrInvalidSize) {
		t.Errorf("invalid size error = %v", err)
	}
	if got := stats.Live(); got != 1 {
		t.Errorf("live resources = %d, want only the canvas", got)
	}
}

func TestManager_AllocateSurface(t *testing.T) {
	rm := NewManager(nil, nil)
	if _, err := rm.AllocateSurface(8, 8); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("before Initialize: %v", err)
	}
	if err := rm.Initialize(render.NewRasterDevice(nil)); err != nil {
		t.Fatal(err)
	}
	s, err := rm.AllocateSurface(8, 8)
	if err != nil || s == nil {
		t.Fatalf("AllocateSurface = %v, %v", s, err)
	}
	s.Dispose()
	rm.Dispose()
	if _, err := rm.AllocateSurface(8, 8); !errors.Is(err, ErrDisposed) {
		t.Errorf("after Dispose: %v", err)
	}
}

func TestManager_GlyphTextureCached(t *testing.T) {
	glyphs, err := NewGlyphRasterizer(16, color.White)
	if err != nil {
		t.Fatalf("NewGlyphRasterizer error: %v", err)
	}
	rm := NewManager(nil, glyphs)
	if rm.GlyphTexture("A") != nil {
		t.Error("glyph texture available before Initialize")
	}
	if err := rm.Initialize(render.NewRasterDevice(nil)); err != nil {
		t.Fatal(err)
	}
	defer rm.Dispose()

	a := rm.GlyphTexture("A")
	if a == nil {
		t.Fatal("GlyphTexture returned nil")
	}
	if rm.GlyphTexture("A") != a {
		t.Error("glyph texture not cached")
	}
	if rm.GlyphTexture("") != nil {
		t.Error("empty label should have no texture")
	}
}

func TestManager_DisposeReleasesEverything(t *testing.T) {
	src := newGatedSource()
	glyphs, err := NewGlyphRasterizer(16, color.White)
	if err != nil {
		t.Fatal(err)
	}
	stats := &render.Stats{}
	rm := NewManager(src, glyphs)
	rm.SetCanvasSize(16, 16)
	if err := rm.Initialize(render.NewRasterDevice(stats)); err != nil {
		t.Fatal(err)
	}

	waitPoll(t, rm, rm.LoadObjectTextures("A", "B"))
	rm.GlyphTexture("X")
	waitPoll(t, rm, rm.LoadObjectTextures("C", "B")) // A 进入延迟释放队列

	src.hold("D")
	inflight := rm.LoadObjectTextures("D", "B")

	rm.Dispose()
	rm.Dispose()

	if got := stats.Live(); got != 0 {
		t.Errorf("live resources after Dispose = %d, want 0", got)
	}
	if !inflight.Resolved() || !errors.Is(inflight.Err(), ErrDisposed) {
		t.Errorf("in-flight handle resolved = %v, err = %v", inflight.Resolved(), inflight.Err())
	}
	if rm.Initialized() || rm.Canvas() != nil || rm.ObjectTexture(types.Blue) != nil {
		t.Error("manager still exposes resources after Dispose")
	}
	late := rm.LoadObjectTextures("E", "F")
	if !late.Resolved() || !errors.Is(late.Err(), ErrDisposed) {
		t.Error("load after Dispose should resolve with ErrDisposed")
	}
	if err := rm.Initialize(render.NewRasterDevice(nil)); !errors.Is(err, ErrDisposed) {
		t.Errorf("Initialize after Dispose = %v", err)
	}
}

func TestManager_DisposeResolvesQueuedRequests(t *testing.T) {
	rm := NewManager(newGatedSource(), nil)
	h := rm.LoadObjectTextures("A", "B")
	rm.Dispose()
	select {
	case <-h.Done():
	default:
		t.Fatal("queued handle not resolved by Dispose")
	}
	if !errors.Is(h.Err(), ErrDisposed) {
		t.Errorf("Err() = %v", h.Err())
	}
}
