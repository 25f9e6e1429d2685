// internal/action/engine_test.go

package action

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiharness/internal/browser"
	"github.com/xkilldash9x/uiharness/internal/browser/browsertest"
	"github.com/xkilldash9x/uiharness/internal/config"
	"github.com/xkilldash9x/uiharness/internal/failure"
	"github.com/xkilldash9x/uiharness/internal/metrics"
	"github.com/xkilldash9x/uiharness/internal/report"
	"github.com/xkilldash9x/uiharness/internal/session"
)

var (
	searchBox = browser.CSS("searchBox", "#search")
	submit    = browser.ID("submit", "submit")
	spinner   = browser.CSS("spinner", ".spinner")
)

type captureCall struct {
	action string
	cause  error
}

type recordingCapturer struct {
	mu    sync.Mutex
	calls []captureCall
}

func (c *recordingCapturer) CaptureError(_ context.Context, _ *session.Session, action string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, captureCall{action, cause})
}

func (c *recordingCapturer) Calls() []captureCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]captureCall(nil), c.calls...)
}

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{ExplicitWait: 300 * time.Millisecond, PageLoadTimeout: time.Second}
}

func newTestEngine(t *testing.T, d *browsertest.Driver, opts ...Option) (*Engine, *session.Registry) {
	t.Helper()
	reg := session.NewRegistry(zaptest.NewLogger(t))
	sess, err := reg.Bind("w1", d)
	require.NoError(t, err)
	return New(sess, testBrowserConfig(), zaptest.NewLogger(t), opts...), reg
}

func TestPolicies(t *testing.T) {
	e := Explicit(5 * time.Second)
	assert.Equal(t, ExplicitPoll, e.Poll)
	assert.True(t, e.ignores(KindStale))
	assert.False(t, e.ignores(KindNotFound))

	f := Fluent(5 * time.Second)
	assert.Equal(t, time.Second, f.Poll)
	assert.True(t, f.ignores(KindNotFound))
	assert.False(t, f.ignores(KindDriver))

	clamped := Fluent(200 * time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, clamped.Poll, "poll never exceeds the timeout")

	zero := NewPolicy("once", 0, 0)
	assert.Zero(t, zero.Poll)

	def := NewPolicy("default", time.Minute, 0)
	assert.Equal(t, ExplicitPoll, def.Poll)
}

func TestWait_BoundedWhenNeverSatisfied(t *testing.T) {
	defer goleak.VerifyNone(t)

	cases := []struct {
		timeout, poll time.Duration
	}{
		{300 * time.Millisecond, 100 * time.Millisecond},
		{250 * time.Millisecond, 250 * time.Millisecond},
		{400 * time.Millisecond, 150 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("T=%s,P=%s", tc.timeout, tc.poll), func(t *testing.T) {
			e, _ := newTestEngine(t, browsertest.New(""))
			p := NewPolicy("test", tc.timeout, tc.poll)

			start := time.Now()
			r := e.WaitUntilVisible(context.Background(), searchBox, p)
			elapsed := time.Since(start)

			assert.True(t, r.TimedOut(), r.String())
			assert.GreaterOrEqual(t, elapsed, tc.timeout)
			// Scheduling slack on top of the [T, T+P] window.
			assert.LessOrEqual(t, elapsed, tc.timeout+tc.poll+100*time.Millisecond)
			assert.GreaterOrEqual(t, r.Attempts, int(tc.timeout/tc.poll))
			assert.NoError(t, r.Err)
		})
	}
}

func TestWait_IgnoresCallerCancellation(t *testing.T) {
	e, _ := newTestEngine(t, browsertest.New(""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	r := e.WaitUntilVisible(ctx, searchBox, NewPolicy("test", 200*time.Millisecond, 50*time.Millisecond))
	assert.True(t, r.TimedOut())
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestWait_SucceedsOnceConditionHolds(t *testing.T) {
	d := browsertest.New("")
	probes := 0
	d.Put("#search", &browsertest.Element{ProbeFunc: func() (browser.ElementState, error) {
		probes++
		return browser.ElementState{Found: probes >= 3, Visible: probes >= 3, Enabled: true}, nil
	}})
	m := metrics.New()
	e, _ := newTestEngine(t, d, WithMetrics(m))

	r := e.WaitUntilVisible(context.Background(), searchBox, NewPolicy("test", 2*time.Second, 50*time.Millisecond))
	require.True(t, r.OK(), r.String())
	assert.Equal(t, 3, r.Attempts)
	assert.Less(t, r.Elapsed, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WaitOutcomes.WithLabelValues("visible", "success")))
}

func TestWait_FailureKinds(t *testing.T) {
	notFound := func() (browser.ElementState, error) {
		return browser.ElementState{}, fmt.Errorf("%w: #search", browser.ErrElementNotFound)
	}

	t.Run("explicit aborts on a kind it does not ignore", func(t *testing.T) {
		d := browsertest.New("").Put("#search", &browsertest.Element{ProbeFunc: notFound})
		e, _ := newTestEngine(t, d)

		start := time.Now()
		r := e.WaitUntilVisible(context.Background(), searchBox, Explicit(2*time.Second))
		assert.Equal(t, OutcomeFailed, r.Outcome)
		assert.Equal(t, KindNotFound, r.Kind)
		assert.ErrorIs(t, r.Err, browser.ErrElementNotFound)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("fluent keeps polling through not-found", func(t *testing.T) {
		d := browsertest.New("").Put("#search", &browsertest.Element{ProbeFunc: notFound})
		e, _ := newTestEngine(t, d)

		r := e.WaitUntilVisible(context.Background(), searchBox, Fluent(300*time.Millisecond))
		assert.True(t, r.TimedOut())
		assert.ErrorIs(t, r.Err, browser.ErrElementNotFound, "the last ignored error is kept")
	})

	t.Run("explicit keeps polling through stale elements", func(t *testing.T) {
		calls := 0
		d := browsertest.New("").Put("#search", &browsertest.Element{ProbeFunc: func() (browser.ElementState, error) {
			calls++
			if calls < 3 {
				return browser.ElementState{}, browser.ErrStaleElement
			}
			return browser.ElementState{Found: true, Visible: true}, nil
		}})
		e, _ := newTestEngine(t, d)

		r := e.WaitUntilVisible(context.Background(), searchBox, NewPolicy("explicit", time.Second, 20*time.Millisecond, KindStale))
		assert.True(t, r.OK(), r.String())
	})

	t.Run("driver errors abort", func(t *testing.T) {
		d := browsertest.New("").Put("#search", &browsertest.Element{ProbeFunc: func() (browser.ElementState, error) {
			return browser.ElementState{}, errors.New("websocket closed")
		}})
		e, _ := newTestEngine(t, d)

		r := e.WaitUntilVisible(context.Background(), searchBox, Fluent(time.Second))
		assert.Equal(t, OutcomeFailed, r.Outcome)
		assert.Equal(t, KindDriver, r.Kind)
	})
}

func TestWait_SingleCheck(t *testing.T) {
	t.Run("visible element", func(t *testing.T) {
		d := browsertest.New("").Put("#search", &browsertest.Element{Visible: true, Enabled: true})
		e, _ := newTestEngine(t, d)

		r := e.WaitUntilVisible(context.Background(), searchBox, NewPolicy("presence", 0, 0))
		assert.True(t, r.OK(), r.String())
		assert.Equal(t, 1, r.Attempts)
	})

	t.Run("missing element", func(t *testing.T) {
		e, _ := newTestEngine(t, browsertest.New(""))

		r := e.WaitUntilVisible(context.Background(), searchBox, NewPolicy("presence", 0, 0))
		assert.True(t, r.TimedOut(), r.String())
		assert.Equal(t, 1, r.Attempts)
		assert.NoError(t, r.Err)
	})

	t.Run("page already loaded", func(t *testing.T) {
		e, _ := newTestEngine(t, browsertest.New(""))
		assert.True(t, e.WaitForPageLoad(context.Background(), 0))
	})
}

func TestProbeLimit(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	assert.WithinDuration(t, time.Now().Add(minProbeBudget), probeLimit(past, 0), 50*time.Millisecond)

	future := time.Now().Add(time.Hour)
	assert.Equal(t, future.Add(minProbeBudget), probeLimit(future, 100*time.Millisecond))
	assert.Equal(t, future.Add(2*time.Second), probeLimit(future, 2*time.Second))
}

func TestWaitUntilClickable(t *testing.T) {
	d := browsertest.New("").
		Put("submit", &browsertest.Element{Visible: true, Enabled: false}).
		Put("#search", &browsertest.Element{Visible: true, Enabled: true})
	e, _ := newTestEngine(t, d)

	assert.True(t, e.WaitUntilClickable(context.Background(), searchBox, e.Explicit()).OK())
	assert.True(t, e.WaitUntilClickable(context.Background(), submit, NewPolicy("t", 150*time.Millisecond, 50*time.Millisecond)).TimedOut(),
		"a disabled element is visible but not clickable")
}

func TestWaitUntilInvisible(t *testing.T) {
	t.Run("absent elements are invisible", func(t *testing.T) {
		e, _ := newTestEngine(t, browsertest.New(""))
		assert.True(t, e.WaitUntilInvisible(context.Background(), spinner, e.Explicit()).OK())
	})

	t.Run("hidden elements are invisible", func(t *testing.T) {
		d := browsertest.New("").Put(".spinner", &browsertest.Element{Visible: false})
		e, _ := newTestEngine(t, d)
		assert.True(t, e.WaitUntilInvisible(context.Background(), spinner, e.Explicit()).OK())
	})

	t.Run("a persistent element times out with a screenshot", func(t *testing.T) {
		d := browsertest.New("").Put(".spinner", &browsertest.Element{Visible: true})
		c := &recordingCapturer{}
		e, _ := newTestEngine(t, d, WithCapturer(c))

		r := e.WaitUntilInvisible(context.Background(), spinner, NewPolicy("t", 100*time.Millisecond, 50*time.Millisecond))
		assert.True(t, r.TimedOut())
		require.Len(t, c.Calls(), 1)
		assert.Equal(t, "isElementInvisible", c.Calls()[0].action)
	})
}

func TestDirectInteractions(t *testing.T) {
	d := browsertest.New("").
		Put("#search", &browsertest.Element{Visible: true, Enabled: true, Text: "BTC", Attrs: map[string]string{"placeholder": "Search"}}).
		Put("submit", &browsertest.Element{Visible: true, Enabled: true})
	e, _ := newTestEngine(t, d)
	ctx := context.Background()

	require.NoError(t, e.Clear(ctx, searchBox))
	require.NoError(t, e.SendKeys(ctx, searchBox, "eth"))
	require.NoError(t, e.Click(ctx, submit))

	text, err := e.GetText(ctx, searchBox)
	require.NoError(t, err)
	assert.Equal(t, "BTC", text)

	v, ok, err := e.GetAttribute(ctx, searchBox, "placeholder")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Search", v)

	_, ok, err = e.GetAttribute(ctx, searchBox, "aria-label")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"clear:#search", "sendkeys:#search:eth", "click:submit"}, d.Calls())
}

func TestDirectInteractions_Escalate(t *testing.T) {
	d := browsertest.New("").Put("submit", &browsertest.Element{ClickErr: browser.ErrStaleElement})
	e, _ := newTestEngine(t, d)

	err := e.Click(context.Background(), searchBox)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInteraction)
	assert.ErrorIs(t, err, browser.ErrElementNotFound)
	assert.Contains(t, err.Error(), "click on searchBox (css=#search) failed")

	var ie *InteractionError
	require.ErrorAs(t, e.Click(context.Background(), submit), &ie)
	assert.Equal(t, "click", ie.Action)
	assert.ErrorIs(t, ie, browser.ErrStaleElement)
}

func TestWithWaitVariants(t *testing.T) {
	short := NewPolicy("t", 150*time.Millisecond, 50*time.Millisecond)

	t.Run("timeout skips the interaction silently", func(t *testing.T) {
		d := browsertest.New("")
		e, _ := newTestEngine(t, d)

		assert.True(t, e.ClickWithWait(context.Background(), submit, short).TimedOut())
		assert.True(t, e.SendKeysWithWait(context.Background(), searchBox, "x", short).TimedOut())
		assert.True(t, e.ClearWithWait(context.Background(), searchBox, short).TimedOut())
		text, r := e.GetTextWithWait(context.Background(), searchBox, short)
		assert.Empty(t, text)
		assert.True(t, r.TimedOut())
		attr, r := e.GetAttributeWithWait(context.Background(), searchBox, "value", short)
		assert.Empty(t, attr)
		assert.True(t, r.TimedOut())

		assert.Empty(t, d.Calls())
	})

	t.Run("ready elements are used", func(t *testing.T) {
		d := browsertest.New("").
			Put("#search", &browsertest.Element{Visible: true, Enabled: true, Text: "BTC/USD", Attrs: map[string]string{"value": "btc"}}).
			Put("submit", &browsertest.Element{Visible: true, Enabled: true})
		e, _ := newTestEngine(t, d)

		assert.True(t, e.SendKeysWithWait(context.Background(), searchBox, "usd", e.Fluent()).OK())
		assert.True(t, e.ClickWithWait(context.Background(), submit, e.Fluent()).OK())
		text, r := e.GetTextWithWait(context.Background(), searchBox, e.Explicit())
		assert.True(t, r.OK())
		assert.Equal(t, "BTC/USD", text)
		attr, r := e.GetAttributeWithWait(context.Background(), searchBox, "value", e.Explicit())
		assert.True(t, r.OK())
		assert.Equal(t, "btc", attr)

		assert.Equal(t, []string{"sendkeys:#search:usd", "click:submit"}, d.Calls())
	})

	t.Run("an interaction error after a successful wait is reported as failed", func(t *testing.T) {
		d := browsertest.New("").Put("submit", &browsertest.Element{Visible: true, Enabled: true, ClickErr: errors.New("click intercepted")})
		e, _ := newTestEngine(t, d)

		r := e.ClickWithWait(context.Background(), submit, e.Explicit())
		assert.Equal(t, OutcomeFailed, r.Outcome)
		assert.ErrorIs(t, r.Err, ErrInteraction)
	})
}

func TestOpenURL(t *testing.T) {
	t.Run("navigates and waits for the document", func(t *testing.T) {
		d := browsertest.New("")
		c := &recordingCapturer{}
		e, _ := newTestEngine(t, d, WithCapturer(c))

		require.NoError(t, e.OpenURL(context.Background(), "https://crypto.example/"))
		u, err := e.CurrentURL(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "https://crypto.example/", u)
		assert.Contains(t, d.Calls(), "eval:document.readyState")
		assert.Empty(t, c.Calls())
	})

	t.Run("a page that never completes is a timeout", func(t *testing.T) {
		d := browsertest.New("")
		d.ReadyState = "loading"
		c := &recordingCapturer{}
		reg := session.NewRegistry(zaptest.NewLogger(t))
		sess, err := reg.Bind("w1", d)
		require.NoError(t, err)
		cfg := testBrowserConfig()
		cfg.PageLoadTimeout = 200 * time.Millisecond
		e := New(sess, cfg, zaptest.NewLogger(t), WithCapturer(c))

		err = e.OpenURL(context.Background(), "https://slow.example/")
		var nav *NavigationFailure
		require.ErrorAs(t, err, &nav)
		assert.Equal(t, CategoryTimeout, nav.Category)
		assert.ErrorIs(t, err, ErrNavigation)
		require.Len(t, c.Calls(), 1)
		assert.Equal(t, "openUrl_timeout_https_slow_example_", c.Calls()[0].action)
		assert.Same(t, nav, c.Calls()[0].cause)
	})

	t.Run("a slow navigation leaves less time for readiness", func(t *testing.T) {
		d := browsertest.New("")
		d.ReadyState = "loading"
		d.NavigateFunc = func(string) error {
			time.Sleep(200 * time.Millisecond)
			return nil
		}
		reg := session.NewRegistry(zaptest.NewLogger(t))
		sess, err := reg.Bind("w1", d)
		require.NoError(t, err)
		cfg := testBrowserConfig()
		cfg.PageLoadTimeout = 300 * time.Millisecond
		e := New(sess, cfg, zaptest.NewLogger(t))

		start := time.Now()
		err = e.OpenURL(context.Background(), "https://slow.example/")
		elapsed := time.Since(start)

		require.ErrorIs(t, err, ErrNavigation)
		assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
		assert.Less(t, elapsed, 500*time.Millisecond, "navigation and readiness share one budget")
	})

	t.Run("invalid URLs fail before navigating", func(t *testing.T) {
		for _, raw := range []string{"", "   ", "not a url", "://missing"} {
			d := browsertest.New("")
			e, _ := newTestEngine(t, d)

			err := e.OpenURL(context.Background(), raw)
			assert.ErrorIs(t, err, ErrNavigation, raw)
			assert.NotContains(t, fmt.Sprint(d.Calls()), "navigate:", raw)
		}
	})

	t.Run("driver errors are classified", func(t *testing.T) {
		d := browsertest.New("")
		d.NavigateFunc = func(string) error { return errors.New("page load error net::ERR_NAME_NOT_RESOLVED") }
		m := metrics.New()
		e, _ := newTestEngine(t, d, WithMetrics(m))

		err := e.OpenURL(context.Background(), "https://nope.invalid")
		var nav *NavigationFailure
		require.ErrorAs(t, err, &nav)
		assert.Equal(t, CategoryDNSFailure, nav.Category)
		assert.Contains(t, nav.Message, "https://nope.invalid")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.NavigationFailures.WithLabelValues("DnsFailure")))
	})
}

// TestOpenURL_ConnectionRefusedEndToEnd drives the full failure path: the
// driver reports Chrome's refused-connection error for a closed port and the
// failure reporter writes exactly one screenshot.
func TestOpenURL_ConnectionRefusedEndToEnd(t *testing.T) {
	const target = "http://127.0.0.1:9/"

	dir := t.TempDir()
	rec := report.NewRecorder(zap.NewNop())
	reporter := failure.NewReporter(config.ArtifactsConfig{
		ScreenshotsDir: dir,
		CaptureTimeout: time.Second,
		NameMaxLength:  100,
	}, rec, zaptest.NewLogger(t))

	d := browsertest.New("")
	d.NavigateFunc = func(u string) error {
		if u == target {
			return errors.New("page load error net::ERR_CONNECTION_REFUSED")
		}
		return nil
	}
	e, _ := newTestEngine(t, d, WithCapturer(reporter))
	rec.Begin("w1", "openClosedPort")

	err := e.OpenURL(context.Background(), target)
	var nav *NavigationFailure
	require.ErrorAs(t, err, &nav)
	assert.Equal(t, CategoryConnectionRefused, nav.Category)
	assert.NotEmpty(t, nav.Message)
	assert.Contains(t, nav.Message, target)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "exactly one screenshot is written")
	assert.Regexp(t,
		regexp.MustCompile(`^ERROR_openUrl_connection_refused_http_127_0_0_1_9__\d{8}_\d{6}_\d{3}\.png$`),
		entries[0].Name())

	test, ok := rec.Active("w1")
	require.True(t, ok)
	require.Len(t, test.Entries, 1)
	assert.NotEmpty(t, test.Entries[0].Screenshot)
}

func TestClosedSession(t *testing.T) {
	d := browsertest.New("").Put("submit", &browsertest.Element{Visible: true, Enabled: true})
	e, reg := newTestEngine(t, d)
	require.NoError(t, reg.Release(context.Background(), "w1"))

	err := e.Click(context.Background(), submit)
	assert.ErrorIs(t, err, session.ErrNoSession)

	r := e.WaitUntilVisible(context.Background(), submit, e.Explicit())
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Equal(t, KindSession, r.Kind)

	assert.ErrorIs(t, e.OpenURL(context.Background(), "https://example.com"), ErrNavigation)
	_, err = e.Title(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestForWorker(t *testing.T) {
	reg := session.NewRegistry(zaptest.NewLogger(t))
	_, err := ForWorker(reg, "w1", testBrowserConfig(), zaptest.NewLogger(t))
	assert.ErrorIs(t, err, session.ErrNoSession)

	sess, err := reg.Bind("w1", browsertest.New("remote-1"))
	require.NoError(t, err)
	e, err := ForWorker(reg, "w1", testBrowserConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Same(t, sess, e.Session())
}

func TestScrolling(t *testing.T) {
	d := browsertest.New("").
		Put("#list", &browsertest.Element{Visible: true, Props: map[string]interface{}{
			"scrollHeight": 500, "clientHeight": 50, "scrollWidth": 100, "clientWidth": 100,
		}}).
		Put("#flat", &browsertest.Element{Visible: true, Props: map[string]interface{}{
			"scrollHeight": 50, "clientHeight": 50, "scrollWidth": 100, "clientWidth": 100,
		}})
	e, _ := newTestEngine(t, d)
	ctx := context.Background()
	list, flat := browser.CSS("list", "#list"), browser.CSS("flat", "#flat")

	require.NoError(t, e.ScrollBy(ctx, 250))

	scrollable, err := e.IsContainerScrollable(ctx, list)
	require.NoError(t, err)
	assert.True(t, scrollable)
	scrollable, err = e.IsContainerScrollable(ctx, flat)
	require.NoError(t, err)
	assert.False(t, scrollable)

	require.NoError(t, e.ScrollContainerToBottom(ctx, list))
	assert.Equal(t, []string{"eval:window.scrollBy(0, 250);", "setprop:#list:scrollTop=500"}, d.Calls())

	err = e.ScrollContainerToBottom(ctx, browser.CSS("missing", "#missing"))
	assert.ErrorIs(t, err, ErrInteraction)
}

func TestScrollBy_Escalates(t *testing.T) {
	d := browsertest.New("")
	d.EvalFunc = func(string) (interface{}, error) { return nil, errors.New("execution context was destroyed") }
	e, _ := newTestEngine(t, d)

	err := e.ScrollBy(context.Background(), 100)
	var ie *InteractionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "scroll", ie.Action)
}

func TestFrames(t *testing.T) {
	d := browsertest.New("").
		Put("#outer", &browsertest.Element{Frame: true}).
		Put("#inner", &browsertest.Element{Frame: true}).
		Put("#div", &browsertest.Element{})
	e, _ := newTestEngine(t, d)
	ctx := context.Background()

	require.NoError(t, e.SwitchToFrame(ctx, browser.CSS("outer", "#outer")))
	require.NoError(t, e.SwitchToFrame(ctx, browser.CSS("inner", "#inner")))
	assert.Equal(t, []string{"#outer", "#inner"}, d.Frames())

	require.NoError(t, e.SwitchToParentFrame(ctx))
	assert.Equal(t, []string{"#outer"}, d.Frames())

	require.NoError(t, e.SwitchToDefaultContent(ctx))
	assert.Empty(t, d.Frames())

	err := e.SwitchToFrame(ctx, browser.CSS("div", "#div"))
	assert.ErrorIs(t, err, browser.ErrNoFrame)
	assert.ErrorIs(t, err, ErrInteraction)
}

func TestPageInfo(t *testing.T) {
	d := browsertest.New("")
	d.SetTitle("Crypto.com Exchange")
	e, _ := newTestEngine(t, d)

	title, err := e.Title(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Crypto.com Exchange", title)

	require.NoError(t, e.Refresh(context.Background()))
	assert.Equal(t, []string{"reload"}, d.Calls())
}

func TestWaitForPageLoad(t *testing.T) {
	d := browsertest.New("")
	d.ReadyState = "interactive"
	e, _ := newTestEngine(t, d)

	assert.False(t, e.WaitForPageLoad(context.Background(), 120*time.Millisecond))
	assert.Contains(t, d.Calls(), "eval:document.readyState")

	d.ReadyState = "complete"
	assert.True(t, e.WaitForPageLoad(context.Background(), time.Second))
}
