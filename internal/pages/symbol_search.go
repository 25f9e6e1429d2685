// internal/pages/symbol_search.go

package pages

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/action"
	"github.com/xkilldash9x/uiharness/internal/browser"
)

// Symbol search popup controls.
const (
	SymbolSearchSection       = "symbolSearchPopupSection"
	SymbolSearchTitle         = "symbolSearchPopupTitle"
	SymbolSearchClose         = "symbolSearchPopupCloseButton"
	SymbolSearchInput         = "symbolSearchPopupSearchInputField"
	AllTypesChip              = "allTypesChip"
	StockChip                 = "stockChip"
	IndexChip                 = "indexChip"
	SymbolAndDescriptionLabel = "symbolAndDescriptionTextLabel"
	NoSymbolsMatchLabel       = "noSymbolsMatchYourCriteriaTextLabel"
	ExchangeSourcesButton     = "exchangeSourcesButton"
	SourcesTextLabel          = "sourcesTextLabel"
	ExchangePopupBackButton   = "exchangePopupBackButton"
)

var (
	listedSymbols = browser.XPath("listedSymbolsList", "//div[@data-name='symbol-search-dialog-content-item']")
	exchangeItems = browser.XPath("exchangeItemsList", "//div[contains(@class, 'textBlock-IxKZEhmO')]")
)

// SymbolSearchLocators is the symbol search popup's locator table.
var SymbolSearchLocators = locators(
	browser.XPath(SymbolSearchSection, "//div[@data-name='symbol-search-items-dialog']"),
	browser.XPath(SymbolSearchTitle, "//div[text()='Symbol Search']"),
	browser.XPath(SymbolSearchClose, "//button[@data-name='close']"),
	browser.XPath(SymbolSearchInput, "//input[@placeholder='Search']"),
	browser.XPath(AllTypesChip, "//span[text()='All types']"),
	browser.XPath(StockChip, "//span[text()='Stock']"),
	browser.XPath(IndexChip, "//span[text()='Index']"),
	browser.XPath(SymbolAndDescriptionLabel, "//div[text()='Symbol & description']"),
	browser.XPath(NoSymbolsMatchLabel, "//div[text()='No symbols match your criteria']"),
	browser.XPath(ExchangeSourcesButton, "//div[@data-name='sources-button']"),
	browser.XPath(SourcesTextLabel, "//div[text()='Sources']"),
	browser.XPath(ExchangePopupBackButton, "//button[contains(@class, 'backButton')]"),
)

// SymbolSearchPopup is the chart's symbol and exchange picker.
type SymbolSearchPopup struct {
	Page
	logger *zap.Logger
}

// NewSymbolSearchPopup builds the popup over e.
func NewSymbolSearchPopup(e *action.Engine, logger *zap.Logger) *SymbolSearchPopup {
	return &SymbolSearchPopup{Page: newPage("symbol_search", e, SymbolSearchLocators), logger: logger.Named("symbol_search_popup")}
}

func (s *SymbolSearchPopup) IsOpen(ctx context.Context) bool {
	return s.IsDisplayed(ctx, SymbolSearchSection)
}

func (s *SymbolSearchPopup) IsClosed(ctx context.Context) bool {
	return s.IsInvisible(ctx, SymbolSearchSection)
}

// Search types text into the popup's search field.
func (s *SymbolSearchPopup) Search(ctx context.Context, text string) error {
	return s.Type(ctx, SymbolSearchInput, text)
}

// FirstSymbolText is the first listed symbol, flattened onto one line.
func (s *SymbolSearchPopup) FirstSymbolText(ctx context.Context) (string, error) {
	loc := nth(listedSymbols, 1)
	text, r := s.engine.GetTextWithWait(ctx, loc, s.engine.Explicit())
	return singleLine(text), resultErr(loc, r)
}

// ClickFirstSymbol selects the first listed symbol.
func (s *SymbolSearchPopup) ClickFirstSymbol(ctx context.Context, symbol string) error {
	if !s.engine.WaitUntilVisible(ctx, nth(listedSymbols, 1), s.engine.Explicit()).OK() {
		s.logger.Warn("Searched symbol item is not displayed.", zap.String("symbol", symbol))
		return checkf("searched symbol item is not displayed: %s", symbol)
	}
	item := within(listedSymbols, 1, "./div/div[2]/div", "listedSearchedSymbolItem : "+symbol)
	return resultErr(item, s.engine.ClickWithWait(ctx, item, s.engine.Explicit()))
}

// FirstExchangeText is the first listed exchange, flattened onto one line.
func (s *SymbolSearchPopup) FirstExchangeText(ctx context.Context) (string, error) {
	loc := nth(exchangeItems, 1)
	text, r := s.engine.GetTextWithWait(ctx, loc, s.engine.Explicit())
	return singleLine(text), resultErr(loc, r)
}

// ClickFirstExchange selects the first listed exchange.
func (s *SymbolSearchPopup) ClickFirstExchange(ctx context.Context, exchange string) error {
	loc := nth(exchangeItems, 1)
	if !s.engine.WaitUntilVisible(ctx, loc, s.engine.Explicit()).OK() {
		s.logger.Warn("Exchange list is not displayed.", zap.String("exchange", exchange))
		return checkf("exchange list is not displayed: %s", exchange)
	}
	return resultErr(loc, s.engine.ClickWithWait(ctx, loc, s.engine.Explicit()))
}

// SelectSymbol opens the popup from the chart toolbar, picks symbol, and
// checks that the toolbar now shows it.
func (s *SymbolSearchPopup) SelectSymbol(ctx context.Context, chart *ChartsPage, symbol string) error {
	s.logger.Info("Selecting a new symbol on chart.", zap.String("symbol", symbol))
	if err := chart.OpenSymbolSearch(ctx); err != nil {
		return err
	}
	if !s.IsOpen(ctx) {
		return checkf("symbol search popup did not open")
	}
	if err := s.Search(ctx, symbol); err != nil {
		return err
	}
	text, err := s.FirstSymbolText(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToLower(text), strings.ToLower(symbol)) {
		return checkf("first listed symbol %q does not contain %q", text, symbol)
	}
	if err := s.ClickFirstSymbol(ctx, symbol); err != nil {
		return err
	}
	if !s.IsClosed(ctx) {
		return checkf("symbol search popup is still open")
	}
	shown, err := chart.SearchIconValue(ctx)
	if err != nil {
		return err
	}
	if shown != symbol {
		return checkf("chart shows %q, want %q", shown, symbol)
	}
	s.logger.Info("New symbol opened on chart.", zap.String("symbol", symbol))
	return nil
}

// SelectExchange switches the popup to the exchange sources view and picks exchange.
func (s *SymbolSearchPopup) SelectExchange(ctx context.Context, chart *ChartsPage, exchange string) error {
	s.logger.Info("Selecting an exchange.", zap.String("exchange", exchange))
	if err := chart.OpenSymbolSearch(ctx); err != nil {
		return err
	}
	if err := s.Click(ctx, ExchangeSourcesButton); err != nil {
		return err
	}
	if !s.IsDisplayed(ctx, SourcesTextLabel) {
		return checkf("sources view did not open")
	}
	if err := s.Search(ctx, exchange); err != nil {
		return err
	}
	text, err := s.FirstExchangeText(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToLower(text), strings.ToLower(exchange)) {
		return checkf("first listed exchange %q does not contain %q", text, exchange)
	}
	if err := s.ClickFirstExchange(ctx, exchange); err != nil {
		return err
	}
	source, err := s.Text(ctx, ExchangeSourcesButton)
	if err != nil {
		return err
	}
	if source != exchange {
		return checkf("exchange source shows %q, want %q", source, exchange)
	}
	return nil
}
