package trie

import (
	"fmt"
	"math/rand"
	"testing"
)

func keysOf(t *Trie) []string {
	var keys []string
	t.Walk(func(key []byte) bool {
		keys = append(keys, string(key))
		return true
	})
	return keys
}

func TestInsertContains(t *testing.T) {
	tr := New()

	keys := [][]byte{
		[]byte("abc"),
		[]byte("abd"),
		[]byte("ab"),
		[]byte(""),
		{0x00, 0xFF},
	}
	for _, k := range keys {
		if !tr.Insert(k) {
			t.Errorf("Insert(%q) = false on first insert", k)
		}
	}
	for _, k := range keys {
		if tr.Insert(k) {
			t.Errorf("Insert(%q) = true on duplicate insert", k)
		}
		if !tr.Contains(k) {
			t.Errorf("Contains(%q) = false after insert", k)
		}
	}
	if tr.Len() != len(keys) {
		t.Errorf("Len() = %d, want %d", tr.Len(), len(keys))
	}
	if tr.Contains([]byte("a")) {
		t.Error("Contains reported a bare prefix as a key")
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestDelete(t *testing.T) {
	tr := New()
	tr.Insert([]byte("abc"))
	tr.Insert([]byte("ab"))

	if !tr.Delete([]byte("abc")) {
		t.Error("Delete of present key returned false")
	}
	if tr.Delete([]byte("abc")) {
		t.Error("Delete of absent key returned true")
	}
	if !tr.Contains([]byte("ab")) {
		t.Error("Delete removed a surviving prefix key")
	}
	if tr.Len() != 1 {
		t.Errorf("Len() = %d after delete, want 1", tr.Len())
	}

	// Pruning: the 'c' branch should be gone entirely.
	if tr.Delete([]byte("ab")); tr.Len() != 0 {
		t.Errorf("Len() = %d after deleting all keys, want 0", tr.Len())
	}
	if len(tr.root.children) != 0 {
		t.Error("empty trie retains pruned children")
	}
}

func TestWalkOrder(t *testing.T) {
	tr := New()
	// Insert deliberately out of order.
	for _, k := range []string{"cb", "a", "ca", "b", "aa"} {
		tr.Insert([]byte(k))
	}
	got := keysOf(tr)
	want := []string{"a", "aa", "b", "ca", "cb"}
	if len(got) != len(want) {
		t.Fatalf("Walk produced %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Walk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalkPrefix(t *testing.T) {
	tr := New()
	for _, k := range []string{"color/car", "color/sky", "size/car", "color"} {
		tr.Insert([]byte(k))
	}

	var got []string
	tr.WalkPrefix([]byte("color"), func(key []byte) bool {
		got = append(got, string(key))
		return true
	})
	want := []string{"color", "color/car", "color/sky"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("WalkPrefix = %v, want %v", got, want)
	}

	got = nil
	tr.WalkPrefix([]byte("nope"), func(key []byte) bool {
		got = append(got, string(key))
		return true
	})
	if len(got) != 0 {
		t.Errorf("WalkPrefix on absent prefix yielded %v", got)
	}
}

func TestWalkEarlyStop(t *testing.T) {
	tr := New()
	for _, k := range []string{"a", "b", "c"} {
		tr.Insert([]byte(k))
	}
	count := 0
	tr.Walk(func(key []byte) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Errorf("Walk visited %d keys after early stop, want 2", count)
	}
}

func TestBuildMatchesSequentialInsert(t *testing.T) {
	keys := [][]byte{
		[]byte("abc"),
		[]byte("abd"),
		[]byte("ab"),
		[]byte("xyz"),
		[]byte(""),
		[]byte("abc"), // duplicate must collapse
		{0x01, 0x02},
		{0x01},
	}

	sequential := New()
	for _, k := range keys {
		sequential.Insert(k)
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([][]byte, len(keys))
		copy(shuffled, keys)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		built := Build(shuffled)
		if err := built.Validate(); err != nil {
			t.Fatalf("trial %d: Validate() = %v", trial, err)
		}
		if !built.Equal(sequential) {
			t.Fatalf("trial %d: Build(%q) differs from sequential insertion", trial, shuffled)
		}
		if built.Len() != sequential.Len() {
			t.Fatalf("trial %d: Len() = %d, want %d", trial, built.Len(), sequential.Len())
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	tr := Build(nil)
	if tr.Len() != 0 {
		t.Errorf("Build(nil).Len() = %d, want 0", tr.Len())
	}
	if tr.Contains([]byte("")) {
		t.Error("empty batch produced a terminal root")
	}
}

func TestJoin(t *testing.T) {
	a := New()
	for _, k := range []string{"abc", "abd", "x"} {
		a.Insert([]byte(k))
	}
	b := Build([][]byte{[]byte("abd"), []byte("abe"), []byte("y")})

	a.Join(b)
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate() after Join = %v", err)
	}

	want := []string{"abc", "abd", "abe", "x", "y"}
	got := keysOf(a)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("after Join keys = %v, want %v", got, want)
	}
	if a.Len() != len(want) {
		t.Errorf("Len() = %d after Join, want %d", a.Len(), len(want))
	}

	// Idempotence: joining identical content again changes nothing.
	a.Join(Build([][]byte{[]byte("abd"), []byte("abe"), []byte("y")}))
	if a.Len() != len(want) {
		t.Errorf("Len() = %d after duplicate Join, want %d", a.Len(), len(want))
	}
}

func TestJoinIntoEmpty(t *testing.T) {
	a := New()
	a.Join(Build([][]byte{[]byte("k1"), []byte("k2")}))
	if a.Len() != 2 || !a.Contains([]byte("k1")) || !a.Contains([]byte("k2")) {
		t.Errorf("Join into empty trie lost keys: %v", keysOf(a))
	}
}
