// Package importer loads directory records from CSV or XLSX exports held
// on local disk, an HTTP(S) server, or an FTP drop.
package importer

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Opener returns a reader for a source location.
type Opener interface {
	Open(ctx context.Context, source string) (io.ReadCloser, error)
}

// SourceOpener opens local paths, http(s) URLs, and ftp URLs.
type SourceOpener struct {
	HTTP       *http.Client
	FTPTimeout time.Duration
}

// NewSourceOpener returns a SourceOpener with default timeouts.
func NewSourceOpener() *SourceOpener {
	return &SourceOpener{
		HTTP:       &http.Client{Timeout: 2 * time.Minute},
		FTPTimeout: 30 * time.Second,
	}
}

func (o *SourceOpener) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return o.openHTTP(ctx, source)
	case strings.HasPrefix(source, "ftp://"):
		return o.openFTP(ctx, source)
	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, eris.Wrapf(err, "importer: open %s", source)
		}
		return f, nil
	}
}

func (o *SourceOpener) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "importer: create request")
	}
	resp, err := o.HTTP.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "importer: download")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck
		return nil, eris.Errorf("importer: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// parseFTPURL extracts host (with port), credentials, and path from an FTP
// URL. Missing credentials fall back to anonymous login.
func parseFTPURL(rawURL string) (host, user, pass, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "importer: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", "", "", eris.Errorf("importer: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return "", "", "", "", eris.New("importer: empty path in ftp url")
	}

	user, pass = "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	return host, user, pass, u.Path, nil
}

// ftpConnReader closes the FTP response and the connection together.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "importer: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "importer: quit ftp connection")
	}
	return nil
}

func (o *SourceOpener) openFTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	host, user, pass, path, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("importer: ftp connect", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(o.FTPTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "importer: ftp dial")
	}
	if err := conn.Login(user, pass); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "importer: ftp login")
	}
	resp, err := conn.Retr(path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "importer: ftp retrieve")
	}
	return &ftpConnReader{resp: resp, conn: conn}, nil
}
