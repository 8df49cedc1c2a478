// Package port finds a free TCP port for the dev server.
package port

import (
	"fmt"
	"net"
	"strconv"

	"github.com/vango-dev/devgate/internal/errors"
)

// ErrExhausted matches (via errors.Is) the error returned when no port in
// the range could be bound.
var ErrExhausted = errors.New("E200")

// Listen binds the first free port in [min, max] on host, trying each
// port once in ascending order. The returned listener is already bound,
// so the port cannot be taken between selection and the server start.
func Listen(host string, min, max int) (net.Listener, int, error) {
	if min < 1 || max > 65535 || min > max {
		return nil, 0, errors.New("E122").
			WithDetail(fmt.Sprintf("Port range %d-%d must satisfy 1 <= min <= max <= 65535", min, max))
	}

	var last error
	for p := min; p <= max; p++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			return ln, p, nil
		}
		last = err
	}

	return nil, 0, errors.New("E200").
		WithDetail(fmt.Sprintf("Every port in %d-%d on %s is in use.", min, max, hostLabel(host))).
		WithSuggestion("Stop other dev servers or widen dev.portMin/dev.portMax in devgate.json").
		Wrap(last)
}

func hostLabel(host string) string {
	if host == "" {
		return "all interfaces"
	}
	return host
}
