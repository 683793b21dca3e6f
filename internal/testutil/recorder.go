package testutil

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vk/configurator/internal/component"
)

// ErrNotFound is returned by Recorder lookups for unknown components.
var ErrNotFound = errors.New("not found")

// Call is one collaborator call observed by a Recorder.
type Call struct {
	Op     string
	Target string
	Args   []string
	At     time.Time
}

// String renders the call as "op target args..." for compact assertions.
func (c Call) String() string {
	parts := []string{c.Op}
	if c.Target != "" {
		parts = append(parts, c.Target)
	}
	return strings.Join(append(parts, c.Args...), " ")
}

// Recorder is an in-memory component.Server that records every effectful
// call in order. Lookups are not recorded.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	services map[string]*RecordedService

	// Fail maps a call string prefix (e.g. "service.start api") to the error
	// that call should return.
	Fail map[string]error
}

var _ component.Server = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		services: make(map[string]*RecordedService),
		Fail:     make(map[string]error),
	}
}

func (r *Recorder) record(op, target string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := Call{Op: op, Target: target, Args: args, At: time.Now()}
	r.calls = append(r.calls, c)
	s := c.String()
	for prefix, err := range r.Fail {
		if strings.HasPrefix(s, prefix) {
			return err
		}
	}
	return nil
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Ops returns the recorded calls rendered with Call.String.
func (r *Recorder) Ops() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Find returns the first recorded call whose string form starts with prefix.
func (r *Recorder) Find(prefix string) (Call, bool) {
	for _, c := range r.Calls() {
		if strings.HasPrefix(c.String(), prefix) {
			return c, true
		}
	}
	return Call{}, false
}

// Reset forgets the recorded calls but keeps the created components.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) CreateService(_ context.Context, serviceType, name string) (component.Service, error) {
	if err := r.record("createService", name, serviceType); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[name]; exists {
		return nil, fmt.Errorf("service %q already exists", name)
	}
	svc := &RecordedService{rec: r, name: name, modules: make(map[string]*RecordedModule)}
	r.services[name] = svc
	return svc, nil
}

func (r *Recorder) Service(name string) (component.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("service %q: %w", name, ErrNotFound)
	}
	return svc, nil
}

func (r *Recorder) SetSetting(key, val string) {
	_ = r.record("setSetting", "", key, val)
}

func (r *Recorder) AddLibrary(path string) error {
	return r.record("addLibrary", "", path)
}

// RecordedService is the Service handle handed out by a Recorder.
type RecordedService struct {
	rec     *Recorder
	name    string
	mu      sync.Mutex
	modules map[string]*RecordedModule
}

func (s *RecordedService) Start(context.Context) error {
	return s.rec.record("service.start", s.name)
}

func (s *RecordedService) Stop(_ context.Context, force bool) error {
	return s.rec.record("service.stop", s.name, strconv.FormatBool(force))
}

func (s *RecordedService) CreateModule(_ context.Context, moduleType, name string) (component.Module, error) {
	if err := s.rec.record("createModule", s.name+"/"+name, moduleType); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.modules[name]; exists {
		return nil, fmt.Errorf("module %s/%s already exists", s.name, name)
	}
	m := &RecordedModule{rec: s.rec, id: s.name + "/" + name}
	s.modules[name] = m
	return m, nil
}

func (s *RecordedService) Module(name string) (component.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[name]
	if !ok {
		return nil, fmt.Errorf("module %s/%s: %w", s.name, name, ErrNotFound)
	}
	return m, nil
}

func (s *RecordedService) SetSetting(key, val string) {
	_ = s.rec.record("service.setSetting", s.name, key, val)
}

func (s *RecordedService) AddLibrary(path string) error {
	return s.rec.record("service.addLibrary", s.name, path)
}

// RecordedModule is the Module handle handed out by a RecordedService.
type RecordedModule struct {
	rec *Recorder
	id  string

	mu       sync.Mutex
	settings map[string]string
}

func (m *RecordedModule) Start(context.Context) error {
	return m.rec.record("module.start", m.id)
}

func (m *RecordedModule) Stop(_ context.Context, force bool) error {
	return m.rec.record("module.stop", m.id, strconv.FormatBool(force))
}

// SetSettings records one call whose arguments are the sorted key=val pairs.
func (m *RecordedModule) SetSettings(settings map[string]string) error {
	keys := slices.Sorted(maps.Keys(settings))
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, k+"="+settings[k])
	}
	m.mu.Lock()
	m.settings = maps.Clone(settings)
	m.mu.Unlock()
	return m.rec.record("module.setSettings", m.id, args...)
}

// Settings returns the last batch passed to SetSettings.
func (m *RecordedModule) Settings() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.settings)
}
