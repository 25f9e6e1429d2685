// internal/browser/launch.go

package browser

import (
	"strings"

	"github.com/xkilldash9x/uiharness/internal/config"
)

// LaunchSpec is the browser specific startup description derived from configuration.
type LaunchSpec struct {
	Kind      Kind
	Args      []string
	Headless  bool
	Maximize  bool
	Incognito bool
}

// BuildLaunchSpec derives the startup arguments for kind from cfg.
//
// Chrome and Firefox receive command line switches in their own dialects.
// Safari takes no switches; maximizing is carried on the spec instead.
func BuildLaunchSpec(kind Kind, cfg config.BrowserConfig) LaunchSpec {
	spec := LaunchSpec{
		Kind:      kind,
		Headless:  cfg.Headless,
		Maximize:  cfg.WindowMaximize,
		Incognito: cfg.Incognito,
	}

	switch kind {
	case KindFirefox:
		if cfg.WindowMaximize {
			spec.Args = append(spec.Args, "--start-maximized")
		}
		if cfg.Incognito {
			spec.Args = append(spec.Args, "-private")
		}
		if cfg.Headless {
			spec.Args = append(spec.Args, "-headless")
		}
	case KindSafari:
		// no command line switches
	default:
		spec.Kind = KindChrome
		if cfg.WindowMaximize {
			spec.Args = append(spec.Args, "--start-maximized")
		}
		if cfg.Incognito {
			spec.Args = append(spec.Args, "--incognito")
		}
		if cfg.Headless {
			spec.Args = append(spec.Args, "--headless=new")
		}
	}

	if spec.Kind != KindSafari {
		spec.Args = append(spec.Args, cfg.Args...)
	}
	return spec
}

// splitFlag turns "--name=value" into ("name", "value", true) and "--name" into ("name", "", false).
func splitFlag(arg string) (string, string, bool) {
	arg = strings.TrimLeft(arg, "-")
	return strings.Cut(arg, "=")
}
