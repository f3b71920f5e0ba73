// Package ipchecker restricts operational endpoints, such as /metrics,
// to clients coming from a trusted subnet.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPChecker extracts the client IP of a request and checks it against a trusted subnet.
type IPChecker struct {
	trustedSubnet     *net.IPNet
	trustProxyHeaders bool
}

type initOptions struct {
	trustProxyHeaders bool
}

type InitOption func(*initOptions)

// WithTrustProxyHeaders makes GetClientIP honour "X-Real-IP" and
// "X-Forwarded-For". Enable it only behind a reverse proxy that overwrites them.
func WithTrustProxyHeaders(value bool) InitOption {
	return func(options *initOptions) {
		options.trustProxyHeaders = value
	}
}

// New creates an IPChecker for trustedSubnet in CIDR notation (e.g. "10.0.0.0/8").
// An empty trustedSubnet trusts nobody.
func New(trustedSubnet string, optionsProto ...InitOption) (*IPChecker, error) {
	options := &initOptions{
		trustProxyHeaders: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	checker := &IPChecker{
		trustProxyHeaders: options.trustProxyHeaders,
	}
	if trustedSubnet == "" {
		return checker, nil
	}

	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}
	checker.trustedSubnet = allowedNet

	return checker, nil
}

// Check reports whether clientIP belongs to the trusted subnet.
func (checker *IPChecker) Check(clientIP net.IP) bool {
	return checker.trustedSubnet != nil && clientIP != nil && checker.trustedSubnet.Contains(clientIP)
}

// GetClientIP returns the peer address of the request. With proxy headers
// trusted, the "X-Real-IP" header and then the first "X-Forwarded-For" entry
// take precedence over RemoteAddr.
func (checker *IPChecker) GetClientIP(request *http.Request) (net.IP, error) {
	if checker.trustProxyHeaders {
		if ip := net.ParseIP(request.Header.Get("X-Real-IP")); ip != nil {
			return ip, nil
		}
		if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return net.ParseIP(strings.TrimSpace(first)), nil
		}
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/GetClientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}
	return net.ParseIP(host), nil
}

// TrustedOnly is an HTTP middleware answering 403 to clients outside the trusted subnet.
func (checker *IPChecker) TrustedOnly(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		clientIP, err := checker.GetClientIP(request)
		if err != nil || !checker.Check(clientIP) {
			response.WriteHeader(http.StatusForbidden)
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
