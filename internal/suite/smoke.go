// internal/suite/smoke.go

package suite

import (
	"fmt"

	"go.uber.org/zap"
)

// OpenURLCase opens url and checks that the page reports a title.
func OpenURLCase(url string) Case {
	return Case{
		Name:       "open " + url,
		Categories: []string{"smoke", "navigation"},
		Run: func(t *T) error {
			if err := t.Engine().OpenURL(t.Context(), url); err != nil {
				return err
			}
			title, err := t.Engine().Title(t.Context())
			if err != nil {
				return err
			}
			t.Log("Opened %s (title %q)", url, title)
			return nil
		},
	}
}

// HomePageCase opens the environment's base URL and checks for the home page
// landmark.
func HomePageCase() Case {
	return Case{
		Name:       "home page loads",
		Categories: []string{"smoke", "home"},
		Run: func(t *T) error {
			if t.BaseURL() == "" {
				return t.Skip("no base URL configured")
			}
			home, err := t.Home()
			if err != nil {
				return err
			}
			if err := home.Open(t.Context(), t.BaseURL()); err != nil {
				return err
			}
			if !home.IsOnHomePage(t.Context()) {
				return fmt.Errorf("home page landmark not displayed at %s", t.BaseURL())
			}
			t.Logger().Debug("Home page verified.", zap.String("url", t.BaseURL()))
			return nil
		},
	}
}

// SmokeCases opens every url, or checks the home page when urls is empty.
func SmokeCases(urls []string) []Case {
	if len(urls) == 0 {
		return []Case{HomePageCase()}
	}
	cases := make([]Case, 0, len(urls))
	for _, u := range urls {
		cases = append(cases, OpenURLCase(u))
	}
	return cases
}
