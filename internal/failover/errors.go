package failover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// TransportError marks a failure to reach an endpoint at all. It triggers
// failover and is never surfaced to callers of Call.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// permanent is implemented by errors that must not fail over whatever their
// message says, such as node-side rejections.
type permanent interface {
	Permanent() bool
}

// Class is the failover classification of an error.
type Class int

const (
	// ClassFatal aborts the call and propagates the error unchanged.
	ClassFatal Class = iota
	// ClassTransient advances to the next endpoint.
	ClassTransient
)

func (c Class) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "fatal"
}

// transientPatterns catches transport failures whose type was lost to
// string formatting somewhere below us.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"host is unreachable",
	"broken pipe",
	"server misbehaving",
	"tls handshake",
	"unexpected eof",
	"bad gateway",
	"service unavailable",
	"status code=502",
	"status code=503",
}

// timeoutPatterns are transient only when the policy says timeouts are.
var timeoutPatterns = []string{
	"i/o timeout",
	"deadline exceeded",
	"gateway timeout",
	"status code=504",
	"client.timeout exceeded",
}

// Classify decides whether err should advance to the next endpoint.
func (p Policy) Classify(err error) Class {
	if err == nil || errors.Is(err, context.Canceled) {
		return ClassFatal
	}

	var perm permanent
	if errors.As(err, &perm) && perm.Permanent() {
		return ClassFatal
	}

	if isTimeout(err) {
		return p.timeoutClass()
	}

	var te *TransportError
	if errors.As(err, &te) {
		return ClassTransient
	}

	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
		urlErr *url.Error
	)
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &urlErr):
		return ClassTransient
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EPIPE):
		return ClassTransient
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range timeoutPatterns {
		if strings.Contains(msg, pattern) {
			return p.timeoutClass()
		}
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return ClassTransient
		}
	}

	return ClassFatal
}

func (p Policy) timeoutClass() Class {
	if p.TimeoutIsTransient {
		return ClassTransient
	}
	return ClassFatal
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
