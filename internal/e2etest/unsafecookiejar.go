package e2etest

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/myrjola/sleuth/internal/errors"
)

// unsafeCookieJar keeps Secure cookies of plain HTTP test servers, e.g., the scs session and the nosurf CSRF
// cookies, which a standard jar would drop.
type unsafeCookieJar struct {
	jar *cookiejar.Jar
}

func newUnsafeCookieJar() (*unsafeCookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "new cookie jar")
	}
	return &unsafeCookieJar{jar: jar}, nil
}

func (u *unsafeCookieJar) SetCookies(target *url.URL, cookies []*http.Cookie) {
	for _, cookie := range cookies {
		cookie.Secure = false
	}
	u.jar.SetCookies(target, cookies)
}

func (u *unsafeCookieJar) Cookies(target *url.URL) []*http.Cookie {
	return u.jar.Cookies(target)
}
