package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestImageContentType(t *testing.T) {
	cases := map[string]string{
		"a.JPG":  "image/jpeg",
		"b.jpeg": "image/jpeg",
		"c.png":  "image/png",
		"d.webp": "image/webp",
		"e.gif":  "image/gif",
	}
	for name, want := range cases {
		got, err := ImageContentType(name)
		if err != nil || got != want {
			t.Fatalf("%s: got %q err=%v", name, got, err)
		}
	}
	if _, err := ImageContentType("x.exe"); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected unsupported image, got %v", err)
	}
}

func TestImageKeySanitizesName(t *testing.T) {
	key := ImageKey("u1", "abc", `..\..\my photo (1).png`)
	if key != "products/u1/abc-my_photo_1_.png" {
		t.Fatalf("unexpected key %q", key)
	}
	if k := ImageKey("u1", "abc", "..."); k != "products/u1/abc-image" {
		t.Fatalf("unexpected fallback key %q", k)
	}
	long := ImageKey("u1", "abc", strings.Repeat("a", 300)+".png")
	if !strings.HasSuffix(long, ".png") || len(long) > len("products/u1/abc-")+100 {
		t.Fatalf("long name not truncated: %q", long)
	}
}

func TestJoinURLEscapesSegments(t *testing.T) {
	got := joinURL("http://cdn/bucket", "products/u1/a b.png")
	if got != "http://cdn/bucket/products/u1/a%20b.png" {
		t.Fatalf("unexpected url %q", got)
	}
}
