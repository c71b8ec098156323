package utils

import "testing"

func TestHash(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Hash("abc"); got != want {
		t.Errorf("Hash(abc) = %s, want %s", got, want)
	}
}

func TestContentHashConcatenatesURLAndTitle(t *testing.T) {
	if ContentHash("https://a.example/x", "Title") != Hash("https://a.example/xTitle") {
		t.Fatal("ContentHash must hash url+title")
	}
	if ContentHash("u", "t1") == ContentHash("u", "t2") {
		t.Fatal("different titles must produce different hashes")
	}
}
