package pad

import (
	"testing"

	fuzz "github.com/google/gofuzz"
)

func TestForLaw(t *testing.T) {
	for n := 0; n <= 10000; n++ {
		length, b := For(n)
		if length < MinLen || length > MaxLen {
			t.Fatalf("For(%d) = %d, out of [%d,%d]", n, length, MinLen, MaxLen)
		}
		if (n+length)%Divisor != 0 {
			t.Fatalf("For(%d) = %d, not aligned to %d", n, length, Divisor)
		}
		if b[0] != '\n' || b[len(b)-1] != '\n' {
			t.Fatalf("For(%d): pad bytes %q missing boundary newlines", n, b)
		}
		for _, c := range b[1 : len(b)-1] {
			if c != ' ' {
				t.Fatalf("For(%d): pad bytes %q have non-space interior byte", n, b)
			}
		}
	}
}

func TestForFuzzed(t *testing.T) {
	fz := fuzz.New().NilChance(0)
	for i := 0; i < 500; i++ {
		var n uint16
		fz.Fuzz(&n)
		length, b := For(int(n))
		if (int(n)+length)%Divisor != 0 {
			t.Fatalf("For(%d) = %d, not aligned", n, length)
		}
		if !Check(int(n), b) {
			t.Fatalf("Check failed on pad produced by For(%d)", n)
		}
	}
}

func TestCheckRejectsCorruption(t *testing.T) {
	_, b := For(37)
	if !Check(37, b) {
		t.Fatalf("Check rejected a valid pad")
	}
	corrupt := append([]byte{}, b...)
	corrupt[0] = 'x'
	if Check(37, corrupt) {
		t.Fatalf("Check accepted a pad with a corrupted leading newline")
	}
	corrupt = append([]byte{}, b...)
	corrupt[len(corrupt)-1] = 'x'
	if Check(37, corrupt) {
		t.Fatalf("Check accepted a pad with a corrupted trailing newline")
	}
	if len(b) > 2 {
		corrupt = append([]byte{}, b...)
		corrupt[1] = '\t'
		if Check(37, corrupt) {
			t.Fatalf("Check accepted a pad with a non-space interior byte")
		}
	}
}

func TestBytesPanicsOnInvalidLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Bytes(1) should have panicked")
		}
	}()
	Bytes(1)
}
