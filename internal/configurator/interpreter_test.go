package configurator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vk/configurator/internal/testutil"
)

const fullConfig = `<?xml version="1.0" encoding="UTF-8"?>
<server>
  <baseLibs><baseLib path="libs/common.jar"/><baseLib path=""/></baseLibs>
  <settings>
    <setting key="mode" val="dev"/>
    <setting key="mode" val="prod"/>
    <setting key="region" val="eu"/>
  </settings>
  <services onLoad="boot">
    <service name="api" type="http">
      <baseLibs><baseLib path="api\handlers.jar"/></baseLibs>
      <settings><setting key="port" val="8080"/></settings>
      <modules>
        <module name="cache" type="lru">
          <settings>
            <setting key="size" val="10"/>
            <setting key="ttl" val="5s"/>
            <setting key="size" val="20"/>
          </settings>
        </module>
        <module name="auth" type="jwt"/>
      </modules>
    </service>
    <baseLibs><baseLib path="file:/nonexistent/shared.jar"/></baseLibs>
    <service name="worker" type="queue"/>
  </services>
  <actions>
    <action id="boot">
      <service method="start" serviceName="api"/>
      <module method="start" serviceName="api" moduleName="cache"/>
      <action id="startWorker"/>
    </action>
    <action id="startWorker">
      <service method="start" serviceName="worker"/>
    </action>
  </actions>
</server>`

func TestExecConfiguration_WalkOrder(t *testing.T) {
	// --- Arrange ---
	c, rec, dir := setup(t, fullConfig, Options{})
	core := filepath.Join(dir, "core")
	require.NoError(t, os.MkdirAll(filepath.Join(core, "libs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(core, "libs", "common.jar"), nil, 0o644))
	ctx, logs := testutil.LogContext(t)

	// --- Act ---
	err := c.ExecConfiguration(ctx)

	// --- Assert ---
	require.NoError(t, err)
	want := []string{
		"addLibrary " + filepath.Join(core, "libs", "common.jar"),
		"setSetting mode dev",
		"setSetting mode prod",
		"setSetting region eu",
		"addLibrary " + filepath.FromSlash("/nonexistent/shared.jar"),
		"createService api http",
		"service.addLibrary api " + filepath.Join(core, "api", "handlers.jar"),
		"service.setSetting api port 8080",
		"createModule api/cache lru",
		"module.setSettings api/cache size=20 ttl=5s",
		"createModule api/auth jwt",
		"createService worker queue",
		"service.start api",
		"module.start api/cache",
		"service.start worker",
	}
	if diff := cmp.Diff(want, rec.Ops()); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, strings.Count(logs.String(), "Base library not found."),
		"missing libraries are reported but still registered")
}

func TestExecConfiguration_Deterministic(t *testing.T) {
	ctx := context.Background()
	first, rec1, _ := setup(t, fullConfig, Options{WorkingDir: "/same"})
	second, rec2, _ := setup(t, fullConfig, Options{WorkingDir: "/same"})

	require.NoError(t, first.ExecConfiguration(ctx))
	require.NoError(t, second.ExecConfiguration(ctx))

	require.NotEmpty(t, rec1.Ops())
	require.Equal(t, rec1.Ops(), rec2.Ops())
}

func TestExecConfiguration_ModuleSettingsAreOneBatch(t *testing.T) {
	c, rec, _ := setup(t, `
<server><services>
  <service name="s" type="t"><modules>
    <module name="m" type="x">
      <settings><setting key="a" val="1"/><setting key="b" val="2"/></settings>
      <settings><setting key="c"/><setting key="a" val="3"/></settings>
    </module>
  </modules></service>
</services></server>`, Options{})

	require.NoError(t, c.ExecConfiguration(context.Background()))

	var batches []testutil.Call
	for _, call := range rec.Calls() {
		if call.Op == "module.setSettings" {
			batches = append(batches, call)
		}
	}
	require.Len(t, batches, 1)
	require.Equal(t, []string{"a=3", "b=2", "c="}, batches[0].Args)
}

func TestExecConfiguration_ModuleWithoutSettingsGetsNoBatch(t *testing.T) {
	c, rec, _ := setup(t, `<server><services><service name="s" type="t"><modules><module name="m" type="x"/></modules></service></services></server>`, Options{})

	require.NoError(t, c.ExecConfiguration(context.Background()))

	_, found := rec.Find("module.setSettings")
	require.False(t, found)
}

func TestExecConfiguration_OnLoadOrdering(t *testing.T) {
	// The service trigger fires after its modules and before the next service.
	c, rec, _ := setup(t, `
<server>
  <services onLoad="all">
    <service name="a" type="t" onLoad="startA">
      <modules><module name="m" type="x" onLoad="startM"/></modules>
    </service>
    <service name="b" type="t"/>
  </services>
  <actions>
    <action id="startA"><service method="start" serviceName="a"/></action>
    <action id="startM"><module method="start" serviceName="a" moduleName="m"/></action>
    <action id="all"><service method="start" serviceName="b"/></action>
  </actions>
</server>`, Options{})

	require.NoError(t, c.ExecConfiguration(context.Background()))

	require.Equal(t, []string{
		"createService a t",
		"createModule a/m x",
		"module.start a/m",
		"service.start a",
		"createService b t",
		"service.start b",
	}, rec.Ops())
}

func TestExecConfiguration_OnLoadCanTouchLaterServices(t *testing.T) {
	c, rec, _ := setup(t, `
<server>
  <services>
    <service name="a" type="t" onLoad="early"/>
    <service name="b" type="t"/>
  </services>
  <actions><action id="early"><service method="start" serviceName="b"/></action></actions>
</server>`, Options{})

	err := c.ExecConfiguration(context.Background())

	var lerr *ComponentLookupError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, "b", lerr.Service)
	require.Equal(t, []string{"createService a t"}, rec.Ops())
}

func TestExecConfiguration_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		xml    string
		check  func(t *testing.T, err error)
		wantOp []string
	}{
		{
			name: "missing services section",
			xml:  `<server><settings><setting key="a" val="1"/></settings></server>`,
			check: func(t *testing.T, err error) {
				var e *MissingSectionError
				require.ErrorAs(t, err, &e)
				require.Equal(t, "services", e.Section)
			},
			wantOp: []string{"setSetting a 1"},
		},
		{
			name: "service without type",
			xml:  `<server><services><service name="a" type="t"/><service name="b"/></services></server>`,
			check: func(t *testing.T, err error) {
				var e *ConfigError
				require.ErrorAs(t, err, &e)
				require.Equal(t, "type", e.Attr)
			},
			wantOp: []string{"createService a t"},
		},
		{
			name: "module without name",
			xml:  `<server><services><service name="a" type="t"><modules><module type="x"/></modules></service></services></server>`,
			check: func(t *testing.T, err error) {
				var e *ConfigError
				require.ErrorAs(t, err, &e)
				require.Equal(t, "name", e.Attr)
			},
			wantOp: []string{"createService a t"},
		},
		{
			name: "setting without key",
			xml:  `<server><settings><setting val="1"/></settings><services/></server>`,
			check: func(t *testing.T, err error) {
				var e *ConfigError
				require.ErrorAs(t, err, &e)
				require.Equal(t, "key", e.Attr)
			},
		},
		{
			name: "non-integer delay",
			xml:  `<server><services><service name="a" type="t" delay="soon"/></services></server>`,
			check: func(t *testing.T, err error) {
				var e *ConfigError
				require.ErrorAs(t, err, &e)
				require.Equal(t, "delay", e.Attr)
			},
		},
		{
			name: "delay beyond 32 bits",
			xml:  `<server><services><service name="a" type="t" delay="9300000000000"/></services></server>`,
			check: func(t *testing.T, err error) {
				var e *ConfigError
				require.ErrorAs(t, err, &e)
				require.Equal(t, "delay", e.Attr)
				require.ErrorIs(t, err, strconv.ErrRange)
			},
		},
		{
			name: "negative delay",
			xml:  `<server><services delay="-5"/></server>`,
			check: func(t *testing.T, err error) {
				var e *ConfigError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "unknown tag inside services",
			xml:  `<server><services><service name="a" type="t"/><daemon name="d"/></services></server>`,
			check: func(t *testing.T, err error) {
				var e *UnsupportedTagError
				require.ErrorAs(t, err, &e)
				require.Equal(t, "daemon", e.Tag)
			},
		},
		{
			name: "unknown tag inside service",
			xml:  `<server><services><service name="a" type="t"><plugins/></service></services></server>`,
			check: func(t *testing.T, err error) {
				var e *UnsupportedTagError
				require.ErrorAs(t, err, &e)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec, _ := setup(t, tc.xml, Options{Sleep: func(time.Duration) {}})

			err := c.ExecConfiguration(context.Background())

			require.Error(t, err)
			tc.check(t, err)
			if tc.wantOp != nil {
				require.Equal(t, tc.wantOp, rec.Ops())
			}
		})
	}
}

func TestExecConfiguration_RegistryFailureAbortsWithoutRollback(t *testing.T) {
	c, rec, _ := setup(t, `
<server><services>
  <service name="a" type="t"/>
  <service name="b" type="t"/>
  <service name="c" type="t"/>
</services></server>`, Options{})
	boom := errors.New("no such type")
	rec.Fail["createService b"] = boom

	err := c.ExecConfiguration(context.Background())

	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"createService a t", "createService b t"}, rec.Ops())
	_, lookupErr := rec.Service("a")
	require.NoError(t, lookupErr, "already created components stay registered")
}

func TestExecConfiguration_DelaysInDocumentOrder(t *testing.T) {
	var slept []time.Duration
	c, _, _ := setup(t, `
<server><services delay="1">
  <service name="a" type="t" delay="2">
    <modules delay="3"><module name="m" type="x" delay="4"/></modules>
  </service>
</services></server>`, Options{Sleep: func(d time.Duration) { slept = append(slept, d) }})

	require.NoError(t, c.ExecConfiguration(context.Background()))

	require.Equal(t, []time.Duration{
		1 * time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 4 * time.Millisecond,
	}, slept)
}

func TestExecConfiguration_ServiceDelayElapsesBeforeCreation(t *testing.T) {
	// --- Arrange ---
	c, rec, _ := setup(t, `
<server><services>
  <service name="a" type="t"/>
  <service name="b" type="t" delay="50"/>
</services></server>`, Options{})

	// --- Act ---
	require.NoError(t, c.ExecConfiguration(context.Background()))

	// --- Assert ---
	a, ok := rec.Find("createService a")
	require.True(t, ok)
	b, ok := rec.Find("createService b")
	require.True(t, ok)
	require.GreaterOrEqual(t, b.At.Sub(a.At), 50*time.Millisecond)
}

func TestResolveLibrary(t *testing.T) {
	core := filepath.Join("work", "core")
	testCases := []struct {
		in   string
		want string
	}{
		{in: "a/b.jar", want: filepath.Join(core, "a", "b.jar")},
		{in: `a\b.jar`, want: filepath.Join(core, "a", "b.jar")},
		{in: "file:/opt/x.jar", want: filepath.FromSlash("/opt/x.jar")},
		{in: "file:///opt/x.jar", want: filepath.FromSlash("/opt/x.jar")},
		{in: "file:rel/x.jar", want: filepath.FromSlash("rel/x.jar")},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, resolveLibrary(core, tc.in))
		})
	}
}
