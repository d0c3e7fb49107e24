package site

import (
	"net/http"
	"net/http/cookiejar"
)

func newJar() http.CookieJar {
	jar, _ := cookiejar.New(nil)
	return jar
}

func newJarClient() *http.Client {
	return &http.Client{Jar: newJar()}
}
