package seen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("https://shelter.example.com/cats?sort=new")
	b := Fingerprint("https://shelter.example.com/cats?sort=new")
	c := Fingerprint("https://shelter.example.com/cats?sort=old")

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("fingerprint not deterministic (-want +got):\n%s", diff)
	}
	if a == c {
		t.Errorf("distinct queries share fingerprint %q", a)
	}
	if len(a) != 16 {
		t.Errorf("unexpected fingerprint length %d for %q", len(a), a)
	}
}

func TestSetKey(t *testing.T) {
	key := setKey(Fingerprint("https://shelter.example.com/cats"))
	if !strings.HasPrefix(key, "catwatch:seen:") {
		t.Errorf("set key %q missing namespace prefix", key)
	}
}
