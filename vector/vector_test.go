package vector

import (
	"bytes"
	"testing"
)

func TestUniformDeterministic(t *testing.T) {
	a, err := Uniform([]byte("seed"), 512, 3329)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Uniform([]byte("seed"), 512, 3329)
	c, _ := Uniform([]byte("other"), 512, 3329)
	if Digest(a) != Digest(b) {
		t.Fatal("same seed, different vectors")
	}
	if Digest(a) == Digest(c) {
		t.Fatal("different seeds, same vector")
	}
	for i, v := range a {
		if v >= 3329 {
			t.Fatalf("element %d = %d out of range", i, v)
		}
	}
}

func TestFromPRNGShortRead(t *testing.T) {
	if _, err := FromPRNG(bytes.NewReader([]byte{1, 2}), 1, 17); err == nil {
		t.Fatal("short reader accepted")
	}
	got, err := FromPRNG(bytes.NewReader([]byte{0xff, 0, 0, 0, 5, 0, 0, 0}), 1, 17)
	if err != nil || got[0] != 5 {
		t.Fatalf("got %v %v", got, err)
	}
}

func TestDigestStable(t *testing.T) {
	r := Ramp(16, 7)
	if r[8] != 1 || len(DigestHex(r)) != 16 {
		t.Fatalf("ramp %v digest %s", r, DigestHex(r))
	}
	r[3]++
	if DigestHex(r) == DigestHex(Ramp(16, 7)) {
		t.Fatal("digest ignores content")
	}
}
