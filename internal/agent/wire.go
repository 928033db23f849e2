package agent

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// The supervisor and client always run on the same host from the same
// build, so requests and replies travel as fixed-size structs in native
// byte order with C natural alignment:
//
//	request: int32 kind | uint8 start | 3 bytes padding
//	reply:   int32 pid | int32 type | int32 status | sock[PATH_MAX] | gpg[PATH_MAX]
const (
	RequestSize = 8
	ReplySize   = 12 + 2*unix.PathMax
)

func (r Request) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RequestSize)
	binary.NativeEndian.PutUint32(buf[0:4], uint32(r.Kind))
	if r.Start {
		buf[4] = 1
	}
	return buf, nil
}

func (r *Request) UnmarshalBinary(data []byte) error {
	if len(data) != RequestSize {
		return fmt.Errorf("request is %d bytes, expected %d", len(data), RequestSize)
	}
	r.Kind = Kind(int32(binary.NativeEndian.Uint32(data[0:4])))
	r.Start = data[4] != 0
	return nil
}

func (r Reply) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ReplySize)
	binary.NativeEndian.PutUint32(buf[0:4], uint32(int32(r.Pid)))
	binary.NativeEndian.PutUint32(buf[4:8], uint32(r.Type))
	binary.NativeEndian.PutUint32(buf[8:12], uint32(r.Status))
	if err := putPath(buf[12:12+unix.PathMax], r.Sock); err != nil {
		return nil, fmt.Errorf("sock: %w", err)
	}
	if err := putPath(buf[12+unix.PathMax:], r.GPG); err != nil {
		return nil, fmt.Errorf("gpg: %w", err)
	}
	return buf, nil
}

func (r *Reply) UnmarshalBinary(data []byte) error {
	if len(data) != ReplySize {
		return fmt.Errorf("reply is %d bytes, expected %d", len(data), ReplySize)
	}
	r.Pid = int(int32(binary.NativeEndian.Uint32(data[0:4])))
	r.Type = Kind(int32(binary.NativeEndian.Uint32(data[4:8])))
	r.Status = Status(int32(binary.NativeEndian.Uint32(data[8:12])))
	r.Sock = getPath(data[12 : 12+unix.PathMax])
	r.GPG = getPath(data[12+unix.PathMax:])
	return nil
}

// putPath stores a NUL-terminated string in a fixed buffer.
func putPath(dst []byte, s string) error {
	if len(s) >= len(dst) {
		return fmt.Errorf("path of %d bytes exceeds %d", len(s), len(dst)-1)
	}
	copy(dst, s)
	return nil
}

func getPath(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		src = src[:i]
	}
	return string(src)
}
