package dhis2

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"
)

// ErrorKind is the diagnostic class of a transport failure
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindTLS               ErrorKind = "tls"
	KindConnectionRefused ErrorKind = "connection_refused"
	KindConnectionReset   ErrorKind = "connection_reset"
	KindDNS               ErrorKind = "dns"
	KindCanceled          ErrorKind = "canceled"
	KindUnknown           ErrorKind = "unknown"
)

// ClassifyError maps a transport error onto a small set of known kinds
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		invalidCert      x509.CertificateInvalidError
		recordHeader     tls.RecordHeaderError
		certVerify       *tls.CertificateVerificationError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) || errors.As(err, &recordHeader) ||
		errors.As(err, &certVerify) {
		return KindTLS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return KindConnectionReset
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindUnknown
}
