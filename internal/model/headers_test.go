package model

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHeaders(t *testing.T) {
	h := Headers{{"Set-Cookie", "a=1"}, {"x-id", "7"}}
	h.Add("set-cookie", "b=2")
	if h.Get("SET-COOKIE") != "a=1" || !h.Has("X-Id") || h.Has("missing") {
		t.Fatalf("lookups on %v", h)
	}
	if diff := cmp.Diff([]string{"a=1", "b=2"}, h.Values("Set-Cookie")); diff != "" {
		t.Fatal(diff)
	}
	c := h.Clone()
	h.Del("set-cookie")
	if diff := cmp.Diff(Headers{{"x-id", "7"}}, h); diff != "" {
		t.Fatal(diff)
	}
	want := http.Header{"Set-Cookie": {"a=1", "b=2"}, "X-Id": {"7"}}
	if diff := cmp.Diff(want, c.HTTPHeader()); diff != "" {
		t.Fatal(diff)
	}
}
