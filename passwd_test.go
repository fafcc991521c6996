package hwcrypt

import (
	"bytes"
	"strings"
	"testing"
)

func TestPasswdBufTruncation(t *testing.T) {
	long := strings.Repeat("a", 7) + strings.Repeat("b", 40)

	buf, err := newPasswdBuf(long)
	if err != nil {
		t.Fatalf("Failed to create password buffer: %v", err)
	}
	defer buf.Destroy()

	if len(buf.Bytes()) != MaxPasswordLen {
		t.Fatalf("Buffer length = %d, want %d", len(buf.Bytes()), MaxPasswordLen)
	}

	// Exactly the first 32 bytes of the input, a strict prefix
	if !bytes.Equal(buf.Bytes(), []byte(long)[:MaxPasswordLen]) {
		t.Errorf("Buffer is not a strict prefix of the input")
	}
}

func TestPasswdBufZeroPadding(t *testing.T) {
	tests := []struct {
		name   string
		passwd string
	}{
		{"empty", ""},
		{"short", "hunter2"},
		{"one below limit", strings.Repeat("x", MaxPasswordLen-1)},
		{"exactly at limit", strings.Repeat("y", MaxPasswordLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := newPasswdBuf(tt.passwd)
			if err != nil {
				t.Fatalf("Failed to create password buffer: %v", err)
			}
			defer buf.Destroy()

			got := buf.Bytes()
			if len(got) != MaxPasswordLen {
				t.Fatalf("Buffer length = %d, want %d", len(got), MaxPasswordLen)
			}

			if !bytes.Equal(got[:len(tt.passwd)], []byte(tt.passwd)) {
				t.Errorf("Password bytes not copied into buffer")
			}

			for i := len(tt.passwd); i < MaxPasswordLen; i++ {
				if got[i] != 0 {
					t.Errorf("Byte %d = %#x, want zero padding", i, got[i])
				}
			}
		})
	}
}

func TestPasswdBufDestroy(t *testing.T) {
	buf, err := newPasswdBuf("sensitive")
	if err != nil {
		t.Fatalf("Failed to create password buffer: %v", err)
	}

	inner := buf.buf
	buf.Destroy()

	if inner.IsAlive() {
		t.Error("Locked buffer still alive after destroy")
	}
	if buf.buf != nil {
		t.Error("Buffer reference not cleared after destroy")
	}

	// Destroy must be safe on every exit path, including repeated and nil
	buf.Destroy()
	var nilBuf *passwdBuf
	nilBuf.Destroy()
}
