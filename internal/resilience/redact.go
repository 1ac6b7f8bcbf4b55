package resilience

import (
	"errors"
	"net/url"
	"strings"
)

// RedactURL strips the query string from any *url.Error in err. Provider
// credentials travel as query parameters, and transport errors quote the
// full request URL.
func RedactURL(err error) error {
	var ue *url.Error
	if err == nil || !errors.As(err, &ue) {
		return err
	}
	return &url.Error{Op: ue.Op, URL: stripQuery(ue.URL), Err: ue.Err}
}

func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
