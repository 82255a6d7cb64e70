package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/decker502/seqanim/pkg/engine"
	"github.com/decker502/seqanim/pkg/metrics"
	"github.com/decker502/seqanim/pkg/settings"
	"github.com/gorilla/mux"
)

// ErrBusy 渲染线程的命令队列已满
var ErrBusy = errors.New("command queue full")

// DebugServer 查看器调试服务器
//
// HTTP 处理器运行在独立的 goroutine 上，不直接接触引擎：
// 状态从 App 发布的快照读取，修改通过 toggle 投递到渲染线程执行。
type DebugServer struct {
	stats  *metrics.Stats
	state  func() engine.State
	toggle func(name string) error
	server *http.Server
}

// NewDebugServer 创建调试服务器
//
// 参数：
//   - addr: 监听地址，例如 ":8090"
//   - stats: 指标，/metrics 的数据来源
//   - state: 返回最近发布的引擎状态，必须可以在任意 goroutine 调用
//   - toggle: 把开关切换投递到渲染线程
func NewDebugServer(addr string, stats *metrics.Stats, state func() engine.State, toggle func(name string) error) *DebugServer {
	d := &DebugServer{stats: stats, state: state, toggle: toggle}
	d.server = &http.Server{
		Addr:              addr,
		Handler:           d.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return d
}

// Router 返回路由
func (d *DebugServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", d.stats.Handler())

	api := r.PathPrefix("/api").Subrouter()
	api.Use(d.statsMiddleware)
	api.HandleFunc("/state", d.stateHandler).Methods(http.MethodGet)
	api.HandleFunc("/settings/flags", d.flagsHandler).Methods(http.MethodGet)
	api.HandleFunc("/settings/flags/{name}", d.toggleHandler).Methods(http.MethodPost)
	return r
}

// Start 在后台开始监听
func (d *DebugServer) Start() {
	go func() {
		log.Printf("[DebugServer] Listening on %s", d.server.Addr)
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[DebugServer] Could not start: %v", err)
		}
	}()
}

// Shutdown 停止服务器
func (d *DebugServer) Shutdown(ctx context.Context) error {
	return d.server.Shutdown(ctx)
}

// respWriter 记录状态码
type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (d *DebugServer) statsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &respWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		d.stats.RecordRequest(strconv.Itoa(wrapped.status), r.Method)
	})
}

func (d *DebugServer) stateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.state())
}

func (d *DebugServer) flagsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"flags": settings.FlagNames})
}

func (d *DebugServer) toggleHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !slices.Contains(settings.FlagNames, name) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("%v: %q", settings.ErrUnknownFlag, name),
		})
		return
	}
	if err := d.toggle(name); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrBusy) {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"toggled": name})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[DebugServer] Failed to encode response: %v", err)
	}
}
