// Package certloader loads and reloads the X.509 certificate hopnode's three
// listeners present when TLS is configured: the certificate/key pair is
// parsed once at New and re-stat'd on a ticker, swapping in a freshly
// parsed certificate whenever the file on disk changes, without
// interrupting already-accepted connections. hopnode owns the reload
// goroutine's lifecycle directly rather than registering with a global
// housekeeping scheduler.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package certloader

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/nwtnni/hoplite-go/cmn/nlog"
)

const name = "tls-cert-loader"

type (
	xcert struct {
		tls.Certificate
		modTime   time.Time
		size      int64
		notBefore time.Time
		notAfter  time.Time
	}

	// Loader periodically re-stats and, on change, re-parses a cert/key
	// pair from disk. The zero value is not usable; construct with New.
	Loader struct {
		certFile string
		keyFile  string
		cur      atomic.Pointer[xcert]
	}

	errExpired struct{ msg string }
)

// New loads certFile/keyFile once, failing if they can't be parsed.
func New(certFile, keyFile string) (*Loader, error) {
	l := &Loader{certFile: certFile, keyFile: keyFile}
	if err := l.reload(false /*compareModTime*/); err != nil {
		return nil, err
	}
	return l, nil
}

// Watch starts a background reload loop at the given interval; it returns a
// stop function the owner must call on shutdown.
func (l *Loader) Watch(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := l.reload(true /*compareModTime*/); err != nil {
					nlog.Errorln(name, "reload:", err)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// GetCertificate implements tls.Config.GetCertificate.
func (l *Loader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return l.get()
}

// GetClientCertificate implements tls.Config.GetClientCertificate.
func (l *Loader) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return l.get()
}

func (l *Loader) get() (*tls.Certificate, error) {
	cur := l.cur.Load()
	if cur == nil {
		return nil, errors.New(name + ": not initialized")
	}
	if time.Now().After(cur.notAfter) {
		return nil, &errExpired{fmt.Sprintf("%s: %s expired (valid until %v)", name, l.certFile, cur.notAfter)}
	}
	return &cur.Certificate, nil
}

func (l *Loader) reload(compareModTime bool) error {
	finfo, err := os.Stat(l.certFile)
	if err != nil {
		return errors.Wrapf(err, "%s: stat %q", name, l.certFile)
	}
	if compareModTime {
		if cur := l.cur.Load(); cur != nil && finfo.ModTime() == cur.modTime && finfo.Size() == cur.size {
			return nil // unchanged
		}
	}

	x := xcert{modTime: finfo.ModTime(), size: finfo.Size()}
	x.Certificate, err = tls.LoadX509KeyPair(l.certFile, l.keyFile)
	if err != nil {
		return errors.Wrapf(err, "%s: load (%s, %s)", name, l.certFile, l.keyFile)
	}
	if x.Certificate.Leaf == nil {
		x.Certificate.Leaf, err = x509.ParseCertificate(x.Certificate.Certificate[0])
		if err != nil {
			return errors.Wrapf(err, "%s: parse %q", name, l.certFile)
		}
	}
	x.notBefore = x.Certificate.Leaf.NotBefore
	x.notAfter = x.Certificate.Leaf.NotAfter
	if now := time.Now(); now.Before(x.notBefore) {
		nlog.Warningln(l.certFile, "is not valid yet:", x.notBefore, x.notAfter)
	}

	l.cur.Store(&x)
	nlog.Infof("%s: loaded %s [%v, %v]", name, l.certFile, x.notBefore, x.notAfter)
	return nil
}

func (e *errExpired) Error() string { return e.msg }

// IsExpired reports whether err (from GetCertificate/GetClientCertificate)
// indicates the loaded certificate has expired.
func IsExpired(err error) bool {
	_, ok := err.(*errExpired)
	return ok
}