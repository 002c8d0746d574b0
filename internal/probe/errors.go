package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"
)

var ErrTooManyRedirects = errors.New("too many redirects")

// Classify maps a transport error to the kind recorded in the log entry.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var (
		dnsErr      *net.DNSError
		netErr      net.Error
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		certErr     x509.CertificateInvalidError
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
	)

	switch {
	case errors.Is(err, ErrTooManyRedirects):
		return ErrorKindRedirects
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrorKindRefused
	case errors.As(err, &dnsErr):
		return ErrorKindDNS
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		return ErrorKindCanceled
	case errors.As(err, &unknownAuth), errors.As(err, &hostErr), errors.As(err, &certErr),
		errors.As(err, &verifyErr), errors.As(err, &recordErr):
		return ErrorKindTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrorKindTimeout
	}
	return ErrorKindNetwork
}
