package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/configurator/internal/component"
)

// recordingUnit remembers the calls made to it.
type recordingUnit struct {
	name     string
	calls    *[]string
	settings map[string]string
	startErr error
	stopErr  error
}

func (u *recordingUnit) Start(_ context.Context, settings map[string]string) error {
	*u.calls = append(*u.calls, "start "+u.name)
	u.settings = settings
	return u.startErr
}

func (u *recordingUnit) Stop(_ context.Context, force bool) error {
	if force {
		*u.calls = append(*u.calls, "stop! "+u.name)
	} else {
		*u.calls = append(*u.calls, "stop "+u.name)
	}
	return u.stopErr
}

func newTestRegistry(calls *[]string) *Registry {
	r := New()
	r.RegisterServiceType("rec", func(name string) (Unit, error) {
		return &recordingUnit{name: name, calls: calls}, nil
	})
	r.RegisterModuleType("rec", func(service, name string) (Unit, error) {
		return &recordingUnit{name: service + "/" + name, calls: calls}, nil
	})
	r.RegisterServiceType("broken", func(name string) (Unit, error) {
		return nil, errors.New("boom")
	})
	return r
}

func TestRegistry_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	var calls []string
	r := newTestRegistry(&calls)

	svc, err := r.CreateService(ctx, "rec", "api")
	require.NoError(t, err)

	got, err := r.Service("api")
	require.NoError(t, err)
	assert.Same(t, svc, got)

	_, err = r.CreateService(ctx, "rec", "api")
	require.ErrorIs(t, err, ErrDuplicate)

	_, err = r.CreateService(ctx, "nope", "other")
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = r.CreateService(ctx, "broken", "other")
	require.ErrorContains(t, err, "boom")

	_, err = r.Service("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.Len(t, r.Services(), 1)
}

func TestRegistry_DuplicateTypePanics(t *testing.T) {
	r := New()
	r.RegisterServiceType("x", func(string) (Unit, error) { return NopUnit{}, nil })
	require.Panics(t, func() {
		r.RegisterServiceType("x", func(string) (Unit, error) { return NopUnit{}, nil })
	})
	r.RegisterModuleType("x", func(string, string) (Unit, error) { return NopUnit{}, nil })
	require.Panics(t, func() {
		r.RegisterModuleType("x", func(string, string) (Unit, error) { return NopUnit{}, nil })
	})
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	var calls []string
	r := newTestRegistry(&calls)

	handle, err := r.CreateService(ctx, "rec", "api")
	require.NoError(t, err)
	handle.SetSetting("port", "80")
	handle.SetSetting("port", "8080")
	require.NoError(t, handle.AddLibrary("/libs/a.jar"))

	svc, err := r.Lookup("api")
	require.NoError(t, err)
	require.Equal(t, component.Stopped, svc.Status())

	require.NoError(t, handle.Start(ctx))
	require.Equal(t, component.Started, svc.Status())
	require.Equal(t, map[string]string{"port": "8080"}, svc.unit.(*recordingUnit).settings)
	require.ErrorIs(t, handle.Start(ctx), ErrInvalidState)

	require.NoError(t, handle.Stop(ctx, true))
	require.Equal(t, component.Stopped, svc.Status())
	require.ErrorIs(t, handle.Stop(ctx, false), ErrInvalidState)

	require.Equal(t, []string{"start api", "stop! api"}, calls)
	require.Equal(t, []string{"/libs/a.jar"}, svc.Libraries())
}

func TestService_FailedStartRevertsToStopped(t *testing.T) {
	ctx := context.Background()
	r := New()
	r.RegisterServiceType("flaky", func(string) (Unit, error) {
		return &recordingUnit{calls: new([]string), startErr: errors.New("no port")}, nil
	})

	handle, err := r.CreateService(ctx, "flaky", "api")
	require.NoError(t, err)

	require.ErrorContains(t, handle.Start(ctx), "no port")
	svc, _ := r.Lookup("api")
	require.Equal(t, component.Stopped, svc.Status())
}

func TestService_FailedStopKeepsStartedUnlessForced(t *testing.T) {
	ctx := context.Background()
	r := New()
	r.RegisterServiceType("sticky", func(string) (Unit, error) {
		return &recordingUnit{calls: new([]string), stopErr: errors.New("busy")}, nil
	})
	handle, err := r.CreateService(ctx, "sticky", "api")
	require.NoError(t, err)
	svc, _ := r.Lookup("api")
	require.NoError(t, handle.Start(ctx))

	require.ErrorContains(t, handle.Stop(ctx, false), "busy")
	require.Equal(t, component.Started, svc.Status())

	require.NoError(t, handle.Stop(ctx, true))
	require.Equal(t, component.Stopped, svc.Status())
}

func TestModule_SettingsAndLifecycle(t *testing.T) {
	ctx := context.Background()
	var calls []string
	r := newTestRegistry(&calls)
	svc, err := r.CreateService(ctx, "rec", "api")
	require.NoError(t, err)

	mod, err := svc.CreateModule(ctx, "rec", "cache")
	require.NoError(t, err)
	_, err = svc.CreateModule(ctx, "rec", "cache")
	require.ErrorIs(t, err, ErrDuplicate)
	_, err = svc.CreateModule(ctx, "nope", "other")
	require.ErrorIs(t, err, ErrUnknownType)

	require.NoError(t, mod.SetSettings(map[string]string{"size": "10"}))
	require.NoError(t, mod.SetSettings(map[string]string{"ttl": "5s"}))

	got, err := svc.Module("cache")
	require.NoError(t, err)
	require.Same(t, mod, got)
	_, err = svc.Module("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mod.Start(ctx))
	concrete := mod.(*Module)
	require.Equal(t, map[string]string{"ttl": "5s"}, concrete.Settings())
	require.Equal(t, "api", concrete.Service())
	require.Equal(t, []string{"start api/cache"}, calls)
}

func TestRegistry_SettingsAndLibraries(t *testing.T) {
	r := New()
	r.SetSetting("k", "1")
	r.SetSetting("k", "2")
	require.NoError(t, r.AddLibrary("a"))
	require.NoError(t, r.AddLibrary("b"))

	require.Equal(t, map[string]string{"k": "2"}, r.Settings())
	require.Equal(t, []string{"a", "b"}, r.Libraries())
}

func TestRegistry_StopAllReverseOrder(t *testing.T) {
	ctx := context.Background()
	var calls []string
	r := newTestRegistry(&calls)

	for _, name := range []string{"first", "second", "idle"} {
		_, err := r.CreateService(ctx, "rec", name)
		require.NoError(t, err)
	}
	first, _ := r.Service("first")
	second, _ := r.Service("second")
	mod, err := first.CreateModule(ctx, "rec", "m")
	require.NoError(t, err)

	require.NoError(t, first.Start(ctx))
	require.NoError(t, mod.Start(ctx))
	require.NoError(t, second.Start(ctx))
	calls = nil

	require.NoError(t, r.StopAll(ctx, false))
	require.Equal(t, []string{"stop second", "stop first/m", "stop first"}, calls)
}
