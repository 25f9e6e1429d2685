// internal/pages/home.go

package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/uiharness/internal/action"
	"github.com/xkilldash9x/uiharness/internal/browser"
)

// Home page controls.
const (
	TradeOnThetaswapButton           = "tradeOnThetaswapButton"
	SelectTokenContractAddressButton = "selectTokenContractAddressButton"
	SearchTokenInput                 = "searchTokenContractAddressInputField"
	TradingViewChartIframe           = "tradingViewChartIframe"
	TokenListTable                   = "tokenListTable"
	TokenListTableContainer          = "tokenListTableContainer"
)

const tableContainer = "//div[@class='table-container font-header']"

var (
	tokenListHeaders = browser.XPath("tokenListTableHeaders", tableContainer+"/table/thead/tr/th")
	tokenListRows    = browser.XPath("tokenListTableRows", tableContainer+"/table/tbody/tr")
)

// HomeLocators is the home page's locator table.
var HomeLocators = locators(
	browser.XPath(TradeOnThetaswapButton, "//div[contains(text(), 'Trade on Thetaswap')]"),
	browser.XPath(SelectTokenContractAddressButton, "//button[contains(text(), 'Select Token/Contract Address')]"),
	browser.XPath(SearchTokenInput, "//input[contains(@placeholder, 'Select Token/Contract Address ⌄')]"),
	browser.XPath(TradingViewChartIframe, "//iframe[contains(@name,'tradingview')]"),
	browser.XPath(TokenListTable, tableContainer+"/table"),
	browser.XPath(TokenListTableContainer, tableContainer),
)

// maxTableColumns bounds header discovery on a page that keeps adding columns.
const maxTableColumns = 32

// HomePage is the landing page with the token list and the embedded chart.
type HomePage struct {
	Page
}

// NewHomePage builds the home page over e.
func NewHomePage(e *action.Engine) *HomePage {
	return &HomePage{Page: newPage("home", e, HomeLocators)}
}

// Open navigates to baseURL.
func (h *HomePage) Open(ctx context.Context, baseURL string) error {
	return h.engine.OpenURL(ctx, baseURL)
}

// IsOnHomePage reports whether the page's landmark button is showing.
func (h *HomePage) IsOnHomePage(ctx context.Context) bool {
	return h.IsDisplayed(ctx, TradeOnThetaswapButton)
}

// SearchToken types text into the token search field.
func (h *HomePage) SearchToken(ctx context.Context, text string) error {
	return h.Type(ctx, SearchTokenInput, text)
}

// SearchTokenValue is the current content of the token search field.
func (h *HomePage) SearchTokenValue(ctx context.Context) (string, error) {
	return h.Attribute(ctx, SearchTokenInput, "value")
}

// TableHeaders returns the token list column headers in order.
func (h *HomePage) TableHeaders(ctx context.Context) ([]string, error) {
	var headers []string
	for i := 1; i <= maxTableColumns; i++ {
		loc := nth(tokenListHeaders, i)
		if !present(ctx, h.engine, loc) {
			break
		}
		text, err := h.engine.GetText(ctx, loc)
		if err != nil {
			return headers, err
		}
		headers = append(headers, strings.TrimSpace(text))
	}
	return headers, nil
}

// row reads the cells of the i-th token row. The first column combines the
// token name with its profit/loss badge.
func (h *HomePage) row(ctx context.Context, i, columns int) ([]string, error) {
	cells := make([]string, 0, columns)
	for col := 1; col <= columns; col++ {
		if col == 1 {
			name, err := h.engine.GetText(ctx, within(tokenListRows, i, "./td/div", "tokenName"))
			if err != nil {
				return nil, err
			}
			pl, err := h.engine.GetText(ctx, within(tokenListRows, i, "./td/span", "tokenProfitLoss"))
			if err != nil {
				return nil, err
			}
			cells = append(cells, name+" "+pl)
			continue
		}
		text, err := h.engine.GetText(ctx, within(tokenListRows, i, fmt.Sprintf("./td[%d]", col), fmt.Sprintf("row[%d]", col-1)))
		if err != nil {
			return nil, err
		}
		cells = append(cells, text)
	}
	return cells, nil
}

// TableData returns every row of the token list.
func (h *HomePage) TableData(ctx context.Context) ([][]string, error) {
	headers, err := h.TableHeaders(ctx)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for i := 1; present(ctx, h.engine, nth(tokenListRows, i)); i++ {
		cells, err := h.row(ctx, i, len(headers))
		if err != nil {
			return rows, err
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// SearchedRow returns the first token row when its name cell contains name.
func (h *HomePage) SearchedRow(ctx context.Context, name string) ([]string, bool, error) {
	headers, err := h.TableHeaders(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(headers) == 0 || !present(ctx, h.engine, nth(tokenListRows, 1)) {
		return nil, false, nil
	}
	cells, err := h.row(ctx, 1, len(headers))
	if err != nil {
		return nil, false, err
	}
	if !strings.Contains(cells[0], name) {
		return nil, false, nil
	}
	return cells, true, nil
}

// IsTokenListInvisible reports whether the token list has collapsed.
func (h *HomePage) IsTokenListInvisible(ctx context.Context) bool {
	return h.IsInvisible(ctx, TokenListTable)
}

// SelectSearchedToken clicks the first token row and expects the list to collapse.
func (h *HomePage) SelectSearchedToken(ctx context.Context, token string) error {
	first := within(tokenListRows, 1, "./td/div", token)
	if r := h.engine.ClickWithWait(ctx, first, h.engine.Explicit()); !r.OK() {
		return resultErr(first, r)
	}
	if !h.IsTokenListInvisible(ctx) {
		return checkf("token list still open after selecting %s", token)
	}
	return nil
}

// CollapseTokenList clicks the token search field again and expects the token
// list to close.
func (h *HomePage) CollapseTokenList(ctx context.Context) error {
	if err := h.Click(ctx, SearchTokenInput); err != nil {
		return err
	}
	if !h.IsTokenListInvisible(ctx) {
		return checkf("token list did not collapse")
	}
	return nil
}

// ScrollTokenList scrolls the token list container to its end. It fails when
// the list does not overflow.
func (h *HomePage) ScrollTokenList(ctx context.Context) error {
	loc, err := h.locators.Lookup(TokenListTableContainer)
	if err != nil {
		return err
	}
	ok, err := h.engine.IsContainerScrollable(ctx, loc)
	if err != nil {
		return err
	}
	if !ok {
		return checkf("token list is not scrollable")
	}
	return h.engine.ScrollContainerToBottom(ctx, loc)
}

// SwitchToChart moves into the TradingView chart frame.
func (h *HomePage) SwitchToChart(ctx context.Context) error {
	loc, err := h.locators.Lookup(TradingViewChartIframe)
	if err != nil {
		return err
	}
	return h.engine.SwitchToFrame(ctx, loc)
}

// VerifyTokenSearchAndSelection opens the token picker, searches for token,
// selects it, and checks that the picker closes. All checks run; their
// failures are joined.
func (h *HomePage) VerifyTokenSearchAndSelection(ctx context.Context, token string) error {
	if err := h.Click(ctx, SelectTokenContractAddressButton); err != nil {
		return err
	}
	var errs []error
	if !h.IsClickable(ctx, SearchTokenInput) {
		errs = append(errs, checkf("token search field is not clickable"))
	}
	if err := h.SearchToken(ctx, token); err != nil {
		return errors.Join(append(errs, err)...)
	}
	if v, err := h.SearchTokenValue(ctx); err != nil || v != token {
		errs = append(errs, checkf("token search field holds %q, want %q", v, token))
	}
	if _, found, err := h.SearchedRow(ctx, token); err != nil || !found {
		errs = append(errs, checkf("token %s not listed", token))
	}
	if err := h.SelectSearchedToken(ctx, token); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
