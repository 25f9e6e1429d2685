// internal/action/classify.go

package action

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNavigation marks every failure returned by OpenURL.
var ErrNavigation = errors.New("navigation failed")

// Category is the diagnosed cause of a failed navigation.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryTimeout
	CategoryConnectionRefused
	CategoryDNSFailure
	CategoryConnectionReset
	CategoryNetworkChanged
	CategoryNoInternet
	CategoryTLSError
)

var categoryNames = map[Category]string{
	CategoryUnknown:           "Unknown",
	CategoryTimeout:           "Timeout",
	CategoryConnectionRefused: "ConnectionRefused",
	CategoryDNSFailure:        "DnsFailure",
	CategoryConnectionReset:   "ConnectionReset",
	CategoryNetworkChanged:    "NetworkChanged",
	CategoryNoInternet:        "NoInternet",
	CategoryTLSError:          "TlsError",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryUnknown]
}

// MarshalText lets categories appear by name in JSON output.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// signature is one entry of the ordered classification table.
type signature struct {
	category Category
	needles  []string
	template string
}

// signatures is matched top to bottom against the lowercased diagnostic; the
// first entry with a matching needle wins.
var signatures = []signature{
	{CategoryConnectionRefused, []string{"err_connection_refused"},
		"Connection Refused: Cannot connect to %s. Possible reasons:\n" +
			"  1. The server is not running\n" +
			"  2. The URL is incorrect\n" +
			"  3. Firewall is blocking the connection\n" +
			"  4. The port is not accessible\n" +
			"Please verify the server is running and the URL is correct."},
	{CategoryDNSFailure, []string{"err_name_not_resolved", "name not resolved"},
		"DNS Error: Cannot resolve hostname for URL: %s. The domain name does not exist or cannot be resolved."},
	{CategoryTimeout, []string{"err_timed_out", "timeout"},
		"Connection Timeout: The server at %s did not respond in time. The server may be slow or unreachable."},
	{CategoryConnectionReset, []string{"err_connection_reset"},
		"Connection Reset: The connection to %s was reset by the server."},
	{CategoryNetworkChanged, []string{"err_network_changed"},
		"Network Error: Network configuration changed while connecting to %s."},
	{CategoryNoInternet, []string{"err_internet_disconnected"},
		"No Internet Connection: Cannot connect to %s. Please check your internet connection."},
	{CategoryTLSError, []string{"err_ssl", "certificate"},
		"SSL/Certificate Error: There is a problem with the SSL certificate for %s. " +
			"The connection may be insecure or the certificate is invalid."},
}

func match(raw string) (signature, bool) {
	lower := strings.ToLower(raw)
	for _, sig := range signatures {
		for _, needle := range sig.needles {
			if strings.Contains(lower, needle) {
				return sig, true
			}
		}
	}
	return signature{}, false
}

// Classify maps a raw navigation diagnostic onto a Category. It is pure and
// case-insensitive; unrecognized text yields CategoryUnknown.
func Classify(raw string) Category {
	if sig, ok := match(raw); ok {
		return sig.category
	}
	return CategoryUnknown
}

// NavigationFailure is a classified navigation error with remediation text.
type NavigationFailure struct {
	Category Category `json:"category"`
	URL      string   `json:"url"`
	Raw      string   `json:"raw"`
	Message  string   `json:"message"`
	// Err is the underlying driver error, if any.
	Err error `json:"-"`
}

func (f *NavigationFailure) Error() string { return f.Message }

func (f *NavigationFailure) Unwrap() []error {
	if f.Err == nil {
		return []error{ErrNavigation}
	}
	return []error{ErrNavigation, f.Err}
}

// Diagnose classifies raw and renders the message for url. It has no side effects.
func Diagnose(url, raw string) *NavigationFailure {
	f := &NavigationFailure{URL: url, Raw: raw}
	switch sig, ok := match(raw); {
	case raw == "":
		f.Category = CategoryUnknown
		f.Message = fmt.Sprintf("Connection error while opening URL: %s", url)
	case ok:
		f.Category = sig.category
		f.Message = fmt.Sprintf(sig.template, url)
	default:
		f.Category = CategoryUnknown
		f.Message = fmt.Sprintf("Connection Error: Failed to open URL: %s. Error details: %s", url, raw)
	}
	return f
}

var (
	nonAlnum    = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	snakeBreaks = regexp.MustCompile(`([a-z])([A-Z])`)
)

const maxURLSlug = 50

// urlSlug turns a URL into a short file-name fragment.
func urlSlug(url string) string {
	if url == "" {
		return "unknown"
	}
	slug := nonAlnum.ReplaceAllString(url, "_")
	if len(slug) > maxURLSlug {
		slug = slug[:maxURLSlug]
	}
	return slug
}

// slug renders the category in snake case for artifact names, e.g. connection_refused.
func (c Category) slug() string {
	return strings.ToLower(snakeBreaks.ReplaceAllString(c.String(), "${1}_${2}"))
}
