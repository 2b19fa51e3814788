package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                           "/",
		"/metrics":                   "/metrics",
		"/api/org.list":              "/api/org.list",
		"/api/user.info?verbose=1":   "/api/user.info",
		"/api/permission.list?a=b&c": "/api/permission.list",
		"/healthz":                   "/healthz",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
