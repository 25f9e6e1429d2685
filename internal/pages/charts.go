// internal/pages/charts.go

package pages

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/action"
	"github.com/xkilldash9x/uiharness/internal/browser"
)

// Chart toolbar and indicator popup controls.
const (
	SearchIcon              = "searchIcon"
	CompareIcon             = "compareIcon"
	IntervalIcon            = "intervalIcon"
	CandlesIcon             = "candlesIcon"
	IndicatorIcon           = "indicatorIcon"
	IndicatorTemplateIcon   = "indicatorTemplateIcon"
	CustomTable             = "customTable"
	CheckAPIButton          = "checkApiButton"
	UndoButton              = "undoButton"
	RedoButton              = "redoButton"
	SaveButton              = "saveButton"
	ManageLayoutIcon        = "manageLayoutIcon"
	QuickSearchIcon         = "quickSearchIcon"
	SettingsIcon            = "settingsIcon"
	FullScreenIcon          = "fullScreenIcon"
	TakeScreenshotIcon      = "takeScreenshotIcon"
	ChartCollapseIcon       = "chartCollapseIcon"
	ChartExpandIcon         = "chartExpandIcon"
	FiveYearIntervalButton  = "fiveYearIntervalButton"
	OneYearIntervalButton   = "oneYearIntervalButton"
	GoToCalendarIcon        = "goToCalendarIcon"
	TimezoneIcon            = "timezoneIcon"
	TogglePercentageIcon    = "togglePercentageIcon"
	LogButton               = "logButton"
	AutoButton              = "autoButton"
	AxisGearIcon            = "axisGearIcon"
	IndicatorsTextLabel     = "indicatorsTextLabel"
	IndicatorPopupClose     = "indicatorPopupCloseButton"
	IndicatorPopupSearch    = "indicatorPopupSearchInputField"
	IndicatorsListSection   = "indicatorsListSection"
	IndicatorsItemList      = "indicatorsItemList"
	indicatorsListSectionXP = "//div[@class='container-hrZZtP0J scroll-I087YV6b']"
)

// ChartLocators is the chart's locator table.
var ChartLocators = locators(
	browser.ID(SearchIcon, "header-toolbar-symbol-search"),
	browser.ID(CompareIcon, "header-toolbar-compare"),
	browser.ID(IntervalIcon, "header-toolbar-intervals"),
	browser.ID(CandlesIcon, "header-toolbar-chart-styles"),
	browser.XPath(IndicatorIcon, "//button/div[contains(text(), 'Indicators')]"),
	browser.ID(IndicatorTemplateIcon, "header-toolbar-study-templates"),
	browser.Locator{Name: CustomTable, By: browser.ByTag, Value: "table"},
	browser.XPath(CheckAPIButton, "//div[text()='Check API']"),
	browser.XPath(UndoButton, "//div[@id='header-toolbar-undo-redo']/button[1]"),
	browser.XPath(RedoButton, "//div[@id='header-toolbar-undo-redo']/button[2]"),
	browser.ID(SaveButton, "header-toolbar-save-load"),
	browser.XPath(ManageLayoutIcon, "//button[@id='header-toolbar-save-load']/following-sibling::button"),
	browser.ID(QuickSearchIcon, "header-toolbar-quick-search"),
	browser.ID(SettingsIcon, "header-toolbar-properties"),
	browser.ID(FullScreenIcon, "header-toolbar-fullscreen"),
	browser.ID(TakeScreenshotIcon, "header-toolbar-screenshot"),
	browser.XPath(ChartCollapseIcon, "//button/div[text()='‹']"),
	browser.XPath(ChartExpandIcon, "//button/div[text()='›']"),
	browser.XPath(FiveYearIntervalButton, "//button/div[text()='5y']"),
	browser.XPath(OneYearIntervalButton, "//button/div[text()='1y']"),
	browser.XPath(GoToCalendarIcon, "//button[contains(@data-name, 'go-to-date')]"),
	browser.XPath(TimezoneIcon, "//button[contains(@aria-label, 'Timezone')]/div"),
	browser.XPath(TogglePercentageIcon, "//button[contains(@aria-label, 'Toggle Percentage')]"),
	browser.XPath(LogButton, "//div[text()='log']/parent::button"),
	browser.XPath(AutoButton, "//div[text()='auto']/parent::button"),
	browser.XPath(AxisGearIcon, "//div[text()='A']/parent::div/parent::div"),
	browser.XPath(IndicatorsTextLabel, "//div/div[text()='Indicators']"),
	browser.XPath(IndicatorPopupClose, "//button[@data-name='close']"),
	browser.XPath(IndicatorPopupSearch, "//input[@placeholder='Search']"),
	browser.XPath(IndicatorsListSection, indicatorsListSectionXP),
	browser.XPath(IndicatorsItemList, indicatorsListSectionXP+"/div/div/span"),
)

// ChartsPage is the TradingView chart embedded in the home page. Its controls
// live inside the chart frame; switch into it first.
type ChartsPage struct {
	Page
	logger *zap.Logger
}

// NewChartsPage builds the chart page over e.
func NewChartsPage(e *action.Engine, logger *zap.Logger) *ChartsPage {
	return &ChartsPage{Page: newPage("charts", e, ChartLocators), logger: logger.Named("charts_page")}
}

// SearchIconValue is the symbol currently shown on the toolbar search button.
func (c *ChartsPage) SearchIconValue(ctx context.Context) (string, error) {
	return c.Attribute(ctx, SearchIcon, "value")
}

// OpenSymbolSearch clicks the toolbar search button.
func (c *ChartsPage) OpenSymbolSearch(ctx context.Context) error {
	return c.Click(ctx, SearchIcon)
}

// AddIndicator opens the indicator popup and searches for indicator.
func (c *ChartsPage) AddIndicator(ctx context.Context, indicator string) error {
	c.logger.Info("Adding an indicator.", zap.String("indicator", indicator))
	if !c.IsClickable(ctx, IndicatorIcon) {
		return checkf("indicator icon is not clickable")
	}
	if err := c.Click(ctx, IndicatorIcon); err != nil {
		return err
	}
	if !c.IsDisplayed(ctx, IndicatorsTextLabel) {
		return checkf("indicator popup did not open")
	}
	return c.Type(ctx, IndicatorPopupSearch, indicator)
}

// CloseIndicatorPopup closes the indicator popup and waits for it to go away.
func (c *ChartsPage) CloseIndicatorPopup(ctx context.Context) error {
	if err := c.Click(ctx, IndicatorPopupClose); err != nil {
		return err
	}
	if !c.IsInvisible(ctx, IndicatorsTextLabel) {
		return checkf("indicator popup is still open")
	}
	return nil
}
