// internal/suite/home.go

package suite

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/uiharness/internal/pages"
)

// Data sets the home suite expands into one case per entry.
var (
	HomeTokens   = []string{"TFUEL"}
	ChartSymbols = []string{"AAL", "AAPL"}
	Exchanges    = []string{"NasdaqNM", "NYSE"}
)

var homeCategories = []string{"sanity", "regression", "home"}

// HomeSuite returns the home page scenarios in priority order: token search,
// token list scrolling, chart symbol switching, exchange switching and token
// selection.
func HomeSuite() []Case {
	var cases []Case
	for _, token := range HomeTokens {
		cases = append(cases, TokenSearchCase(token))
	}
	cases = append(cases, TokenListScrollCase())
	for _, symbol := range ChartSymbols {
		cases = append(cases, ChartSymbolCase(symbol))
	}
	for _, exchange := range Exchanges {
		cases = append(cases, ChangeExchangeCase(exchange))
	}
	for _, token := range HomeTokens {
		cases = append(cases, TokenSelectionCase(token))
	}
	return cases
}

// openHome opens the configured base URL, skipping the case when none is set.
func openHome(t *T) (*pages.HomePage, error) {
	if t.BaseURL() == "" {
		return nil, t.Skip("no base URL configured")
	}
	home, err := t.Home()
	if err != nil {
		return nil, err
	}
	if err := home.Open(t.Context(), t.BaseURL()); err != nil {
		return nil, err
	}
	return home, nil
}

// check adds a soft assertion failure to errs.
func check(errs []error, ok bool, format string, args ...interface{}) []error {
	if ok {
		return errs
	}
	return append(errs, fmt.Errorf("%w: %s", pages.ErrCheck, fmt.Sprintf(format, args...)))
}

// TokenSearchCase types token into the token picker and collapses the list again.
func TokenSearchCase(token string) Case {
	return Case{
		Name:       fmt.Sprintf("home screen [%s]", token),
		Categories: homeCategories,
		Run: func(t *T) error {
			home, err := openHome(t)
			if err != nil {
				return err
			}
			ctx := t.Context()
			var errs []error
			errs = check(errs, home.IsDisplayed(ctx, pages.SelectTokenContractAddressButton), "token picker button is not displayed")
			errs = check(errs, home.IsClickable(ctx, pages.SelectTokenContractAddressButton), "token picker button is not clickable")
			if err := home.Click(ctx, pages.SelectTokenContractAddressButton); err != nil {
				return errors.Join(append(errs, err)...)
			}
			errs = check(errs, home.IsDisplayed(ctx, pages.SearchTokenInput), "token search field is not displayed")
			errs = check(errs, home.IsClickable(ctx, pages.SearchTokenInput), "token search field is not clickable")

			if err := home.SearchToken(ctx, token); err != nil {
				return errors.Join(append(errs, err)...)
			}
			got, err := home.SearchTokenValue(ctx)
			errs = check(errs, err == nil && got == token, "token search field holds %q, want %q", got, token)
			if err := home.CollapseTokenList(ctx); err != nil {
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		},
	}
}

// TokenListScrollCase opens the token picker and scrolls its list to the end.
func TokenListScrollCase() Case {
	return Case{
		Name:       "token list scrolls",
		Categories: homeCategories,
		Run: func(t *T) error {
			home, err := openHome(t)
			if err != nil {
				return err
			}
			ctx := t.Context()
			var errs []error
			errs = check(errs, home.IsDisplayed(ctx, pages.SelectTokenContractAddressButton), "token picker button is not displayed")
			if err := home.Click(ctx, pages.SelectTokenContractAddressButton); err != nil {
				return errors.Join(append(errs, err)...)
			}
			if err := home.ScrollTokenList(ctx); err != nil {
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		},
	}
}

// withChart runs fn inside the chart frame and always returns to the top
// document afterwards.
func withChart(t *T, home *pages.HomePage, fn func(*pages.ChartsPage, *pages.SymbolSearchPopup) error) error {
	chart, err := t.Charts()
	if err != nil {
		return err
	}
	popup, err := t.SymbolSearch()
	if err != nil {
		return err
	}
	if err := home.SwitchToChart(t.Context()); err != nil {
		return err
	}
	runErr := fn(chart, popup)
	if err := t.Engine().SwitchToDefaultContent(t.Context()); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// ChartSymbolCase switches the embedded chart to symbol.
func ChartSymbolCase(symbol string) Case {
	return Case{
		Name:       fmt.Sprintf("switch chart symbol [%s]", symbol),
		Categories: homeCategories,
		Run: func(t *T) error {
			home, err := openHome(t)
			if err != nil {
				return err
			}
			errs := check(nil, home.IsDisplayed(t.Context(), pages.SelectTokenContractAddressButton), "token picker button is not displayed")
			err = withChart(t, home, func(chart *pages.ChartsPage, popup *pages.SymbolSearchPopup) error {
				return popup.SelectSymbol(t.Context(), chart, symbol)
			})
			if err != nil {
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		},
	}
}

// ChangeExchangeCase switches the chart's symbol source to exchange.
func ChangeExchangeCase(exchange string) Case {
	return Case{
		Name:       fmt.Sprintf("change exchange [%s]", exchange),
		Categories: homeCategories,
		Run: func(t *T) error {
			home, err := openHome(t)
			if err != nil {
				return err
			}
			return withChart(t, home, func(chart *pages.ChartsPage, popup *pages.SymbolSearchPopup) error {
				return popup.SelectExchange(t.Context(), chart, exchange)
			})
		},
	}
}

// TokenSelectionCase searches for token, selects it and checks the picker closes.
func TokenSelectionCase(token string) Case {
	return Case{
		Name:       fmt.Sprintf("token selection [%s]", token),
		Categories: homeCategories,
		Run: func(t *T) error {
			home, err := openHome(t)
			if err != nil {
				return err
			}
			if err := home.VerifyTokenSearchAndSelection(t.Context(), token); err != nil {
				return err
			}
			return home.CollapseTokenList(t.Context())
		},
	}
}

// Suites maps the names accepted by run --suite onto their case builders.
var Suites = map[string]func(urls []string) []Case{
	"smoke": SmokeCases,
	"home":  func([]string) []Case { return HomeSuite() },
}
