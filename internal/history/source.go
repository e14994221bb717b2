package history

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
)

const ftpTimeout = 30 * time.Second

// Open returns a reader for a historical table. uri is either a local file
// path or an ftp:// URL; FTP sources log in anonymously unless the URL carries
// credentials.
func Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if u, err := url.Parse(uri); err == nil && u.Scheme == "ftp" {
		return openFTP(ctx, u)
	}

	f, err := os.Open(uri)
	if err != nil {
		return nil, &DataSourceError{Source: uri, Op: "open", Err: err}
	}
	return f, nil
}

func openFTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	fail := func(op string, err error) error {
		return &DataSourceError{Source: u.Redacted(), Op: op, Err: err}
	}

	addr, err := ftpAddr(u)
	if err != nil {
		return nil, fail("parse url", err)
	}
	user, pass := ftpCredentials(u)

	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fail("ftp dial", err)
	}
	defer conn.Quit()

	if err := conn.Login(user, pass); err != nil {
		return nil, fail("ftp login", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return nil, fail("ftp retr", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fail("read body", err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func ftpAddr(u *url.URL) (string, error) {
	if u.Hostname() == "" {
		return "", fmt.Errorf("missing host in %q", u.Redacted())
	}
	if u.Path == "" || u.Path == "/" {
		return "", fmt.Errorf("missing file path in %q", u.Redacted())
	}
	port := u.Port()
	if port == "" {
		port = "21"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func ftpCredentials(u *url.URL) (string, string) {
	if u.User == nil {
		return "anonymous", "anonymous"
	}
	pass, _ := u.User.Password()
	return u.User.Username(), pass
}

// URI is a history location accepted by Open.
type URI string

// Load opens and loads the table at u.
func (u URI) Load(ctx context.Context) (*Table, error) {
	return LoadFrom(ctx, string(u))
}
