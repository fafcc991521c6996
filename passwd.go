package hwcrypt

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// MaxPasswordLen is the fixed size of the password buffer handed to the TEE
// primitives. Longer passwords are truncated, shorter ones are zero-padded.
const MaxPasswordLen = 32

// passwdBuf is an ephemeral fixed-capacity password buffer. It is owned
// exclusively by the key operation that created it and must be destroyed on
// every exit path; Destroy wipes the locked memory before releasing it, so
// no password byte survives the call.
type passwdBuf struct {
	buf *memguard.LockedBuffer
}

// newPasswdBuf builds a MaxPasswordLen buffer holding a zero-padded copy of
// the password, truncated if longer. The buffer is allocated zero-filled
// before the copy, so unused capacity is never uninitialized. The transient
// byte conversion of the password string is wiped before returning.
func newPasswdBuf(passwd string) (p *passwdBuf, err error) {
	// memguard signals allocation failure by panicking; map it to the
	// allocation-failure return path so the key operation can skip and fail
	// with its sentinel instead of crashing the caller.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to allocate secure password buffer: %v", r)
		}
	}()

	buf := memguard.NewBuffer(MaxPasswordLen)

	src := []byte(passwd)
	n := len(src)
	if n > MaxPasswordLen {
		n = MaxPasswordLen
	}
	copy(buf.Bytes()[:n], src[:n])
	memguard.WipeBytes(src)

	return &passwdBuf{buf: buf}, nil
}

// Bytes exposes the underlying fixed buffer for the duration of a TEE call.
// The slice aliases locked memory and must not outlive the buffer.
func (p *passwdBuf) Bytes() []byte {
	return p.buf.Bytes()
}

// Destroy wipes and releases the buffer. Safe to call on a nil receiver and
// idempotent, so it can sit in a defer on every path.
func (p *passwdBuf) Destroy() {
	if p == nil || p.buf == nil {
		return
	}
	p.buf.Destroy()
	p.buf = nil
}
