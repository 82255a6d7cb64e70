// Package settings 可见性与轨迹设置存储
//
// 引擎通过 Subscribe 注册观察者，在设置变化时重新渲染，但从不写回。
// 持久化沿用 gdata + YAML，gdata 管理器为 nil 时退化为纯内存设置。
package settings

import (
	"errors"
	"fmt"
	"log"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFlag 未知的开关名
var ErrUnknownFlag = errors.New("unknown flag")

// Values 全部设置
type Values struct {
	Flags Flags         `yaml:"flags"`
	Trail TrailSettings `yaml:"trail"`
}

// DefaultValues 返回默认设置
func DefaultValues() Values {
	return Values{Flags: DefaultFlags(), Trail: DefaultTrailSettings()}
}

// Observer 设置观察者
type Observer[T any] interface {
	Notify(value T)
}

// ObserverFunc 函数形式的观察者
type ObserverFunc[T any] func(value T)

// Notify 实现 Observer
func (f ObserverFunc[T]) Notify(value T) { f(value) }

type observerEntry struct {
	id       uint64
	observer Observer[Values]
}

// Subscription 订阅句柄
type Subscription struct {
	store *Store
	id    uint64
}

// Unsubscribe 取消订阅，可重复调用
func (s *Subscription) Unsubscribe() {
	if s == nil || s.store == nil {
		return
	}
	s.store.remove(s.id)
	s.store = nil
}

// Store 设置存储
//
// 通知是同步的，按订阅顺序依次调用。
// 非线程安全，只在渲染线程上修改。
type Store struct {
	gdataManager *gdata.Manager // 可为 nil（降级模式，仅内存设置）
	values       Values
	saved        bool // 是否从持久化存储中读到过设置
	observers    []observerEntry
	nextID       uint64
}

// 存储路径常量
const (
	settingsObject   = "settings"
	settingsProperty = "viewer"
)

// NewStore 创建设置存储并尝试加载已保存的设置
//
// 参数：
//   - gdataManager: gdata 跨平台存储管理器，可为 nil
func NewStore(gdataManager *gdata.Manager) *Store {
	s := &Store{gdataManager: gdataManager, values: DefaultValues()}
	if err := s.Load(); err != nil {
		log.Printf("[Settings] Warning: Failed to load settings: %v (using defaults)", err)
	}
	return s
}

// Load 从 gdata 加载设置
// 加载失败时回到默认设置并返回错误
func (s *Store) Load() error {
	s.saved = false
	if s.gdataManager == nil || !s.gdataManager.ObjectPropExists(settingsObject, settingsProperty) {
		s.values = DefaultValues()
		return nil
	}

	data, err := s.gdataManager.LoadObjectProp(settingsObject, settingsProperty)
	if err != nil {
		s.values = DefaultValues()
		return fmt.Errorf("failed to load settings: %w", err)
	}

	loaded := DefaultValues()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		s.values = DefaultValues()
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if _, err := loaded.Trail.Policy(); err != nil {
		log.Printf("[Settings] Warning: saved trail settings invalid: %v (using default trail)", err)
		loaded.Trail = DefaultTrailSettings()
	}
	s.values = loaded
	s.saved = true
	log.Printf("[Settings] Settings loaded successfully")
	return nil
}

// Save 保存设置到 gdata
// gdataManager 为 nil 时直接返回 nil
func (s *Store) Save() error {
	if s.gdataManager == nil {
		return nil
	}
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := s.gdataManager.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	log.Printf("[Settings] Settings saved successfully")
	return nil
}

// HasSaved 是否加载到了已保存的设置
// 没有时宿主可以用配置文件中的默认值覆盖
func (s *Store) HasSaved() bool {
	return s.saved
}

// Values 返回当前设置
func (s *Store) Values() Values {
	return s.values
}

// SetFlags 修改可见性开关
func (s *Store) SetFlags(f Flags) {
	if s.values.Flags == f {
		return
	}
	s.values.Flags = f
	s.notify()
}

// ToggleFlag 按名称翻转一个开关
func (s *Store) ToggleFlag(name string) error {
	f, err := s.values.Flags.Toggle(name)
	if err != nil {
		return err
	}
	s.SetFlags(f)
	return nil
}

// SetTrail 修改轨迹设置，非法设置返回错误且不生效
func (s *Store) SetTrail(t TrailSettings) error {
	if _, err := t.Policy(); err != nil {
		return err
	}
	if s.values.Trail == t {
		return nil
	}
	s.values.Trail = t
	s.notify()
	return nil
}

// Subscribe 注册观察者
func (s *Store) Subscribe(o Observer[Values]) *Subscription {
	if o == nil {
		return &Subscription{}
	}
	s.nextID++
	s.observers = append(s.observers, observerEntry{id: s.nextID, observer: o})
	return &Subscription{store: s, id: s.nextID}
}

// Observers 返回当前观察者数量
func (s *Store) Observers() int {
	return len(s.observers)
}

func (s *Store) remove(id uint64) {
	for i, e := range s.observers {
		if e.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Store) subscribed(id uint64) bool {
	for _, e := range s.observers {
		if e.id == id {
			return true
		}
	}
	return false
}

func (s *Store) notify() {
	// 通知期间允许取消订阅：已取消的观察者不再收到本轮通知
	observers := s.observers
	v := s.values
	for _, e := range observers {
		if !s.subscribed(e.id) {
			continue
		}
		e.observer.Notify(v)
	}
}
