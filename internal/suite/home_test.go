// internal/suite/home_test.go

package suite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiharness/internal/browser/browsertest"
	"github.com/xkilldash9x/uiharness/internal/pages"
	"github.com/xkilldash9x/uiharness/internal/report"
)

func control(t *testing.T, table pages.Locators, name string) string {
	t.Helper()
	loc, err := table.Lookup(name)
	require.NoError(t, err)
	return loc.Value
}

func TestHomeSuite_Cases(t *testing.T) {
	var names []string
	for _, c := range HomeSuite() {
		names = append(names, c.Name)
		assert.Contains(t, c.Categories, "regression")
		assert.NotNil(t, c.Run)
	}
	assert.Equal(t, []string{
		"home screen [TFUEL]",
		"token list scrolls",
		"switch chart symbol [AAL]",
		"switch chart symbol [AAPL]",
		"change exchange [NasdaqNM]",
		"change exchange [NYSE]",
		"token selection [TFUEL]",
	}, names)

	assert.Len(t, Suites["home"]([]string{"https://ignored.example/"}), len(names))
	assert.Len(t, Suites["smoke"]([]string{"https://a.example/", "https://b.example/"}), 2)
}

func TestHomeSuite_SkipsWithoutBaseURL(t *testing.T) {
	cfg := testConfig(t, 2)
	cfg.EnvironmentCfg.BaseURL = ""
	factory := &fakeFactory{}
	r := NewRunner(cfg, factory, zaptest.NewLogger(t))

	summary := r.Run(context.Background(), HomeSuite())
	assert.Equal(t, report.Summary{Total: 7, Skipped: 7}, summary)
	for _, d := range factory.Drivers() {
		assert.Equal(t, []string{"quit"}, d.Calls(), "nothing is opened without a base URL")
	}
}

func TestHomeSuite_Run(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.EnvironmentCfg.BaseURL = "https://thetaswap.example/"

	picker := control(t, pages.HomeLocators, pages.SelectTokenContractAddressButton)
	container := control(t, pages.HomeLocators, pages.TokenListTableContainer)
	iframe := control(t, pages.HomeLocators, pages.TradingViewChartIframe)

	factory := &fakeFactory{setup: func(d *browsertest.Driver) {
		d.Put(picker, &browsertest.Element{Visible: true, Enabled: true}).
			Put(container, &browsertest.Element{Visible: true, Props: map[string]interface{}{
				"scrollHeight": 1200, "clientHeight": 400, "scrollWidth": 10, "clientWidth": 10,
			}}).
			Put(iframe, &browsertest.Element{Frame: true})
	}}
	r := NewRunner(cfg, factory, zaptest.NewLogger(t))

	summary := r.Run(context.Background(), HomeSuite())
	assert.Equal(t, report.Summary{Total: 7, Passed: 1, Failed: 6}, summary)

	byName := map[string]*report.Test{}
	for _, tt := range r.Recorder().Tests() {
		byName[tt.Name] = tt
	}
	assert.Equal(t, report.StatusPass, byName["token list scrolls"].Status)
	assert.Equal(t, report.StatusFail, byName["change exchange [NYSE]"].Status)

	drivers := factory.Drivers()
	require.Len(t, drivers, 1)
	d := drivers[0]
	assert.Contains(t, d.Calls(), "navigate:https://thetaswap.example/")
	assert.Contains(t, d.Calls(), "setprop:"+container+":scrollTop=1200")
	assert.Empty(t, d.Frames(), "chart cases return to the top document")
}
