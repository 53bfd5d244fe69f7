package minidump

import (
	"fmt"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

const headerSize = 32

// parseHeader decodes the fixed 32-byte header starting at offset 0.
// Together with parseDirectory it is the only place a bad magic, truncated
// header or malformed directory turns into a fatal error; every stream
// decoder fails soft.
func parseHeader(blob *dumpio.Blob) (Header, error) {
	if blob.Len() < headerSize {
		return Header{}, invalidSignature(fmt.Sprintf("blob shorter than the 32-byte header (%d bytes)", blob.Len()))
	}

	sig, err := blob.U32(0)
	if err != nil {
		return Header{}, invalidSignature("could not read signature")
	}
	if sig != Signature {
		return Header{}, invalidSignature(fmt.Sprintf("signature mismatch, got %#08x", sig))
	}

	c := dumpio.NewCursor(blob, 4)
	var h Header
	h.Signature = sig
	h.Version = c.U16()
	h.ImplementationVer = c.U16()
	h.StreamCount = c.U32()
	h.StreamDirectoryRVA = c.U32()
	h.Checksum = c.U32()
	h.TimeDateStamp = c.U32()
	h.Flags = c.U64()
	if c.Err() != nil {
		return Header{}, invalidHeader(c.Err().Error())
	}
	return h, nil
}
