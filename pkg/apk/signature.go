package apk

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/fullsailor/pkcs7"
)

// ErrNoSignature is returned when an APK carries no certificate we can read.
var ErrNoSignature = errors.New("no signing certificate found")

const (
	eocdMagic      = 0x06054b50
	eocdMinSize    = 22
	sigBlockMagic  = "APK Sig Block 42"
	sigBlockMaxLen = 64 << 20

	schemeV2  = 0x7109871a
	schemeV3  = 0xf05368c0
	schemeV31 = 0x1b93ad61
)

// SignatureHash returns the lowercase hex SHA-256 of the first signer's
// certificate. The APK Signing Block is preferred; the JAR signature in
// META-INF is used for v1-only packages. src may be nil.
func SignatureHash(ra io.ReaderAt, size int64, src EntrySource) (string, error) {
	cert, err := signingBlockCert(ra, size)
	if err != nil && src != nil {
		cert, err = jarSignatureCert(src)
	}
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(cert)
	return hex.EncodeToString(sum[:]), nil
}

func signingBlockCert(ra io.ReaderAt, size int64) ([]byte, error) {
	cdOffset, err := centralDirectoryOffset(ra, size)
	if err != nil {
		return nil, err
	}
	if cdOffset < 32 {
		return nil, ErrNoSignature
	}

	footer := make([]byte, 24)
	if _, err := ra.ReadAt(footer, cdOffset-24); err != nil {
		return nil, err
	}
	if string(footer[8:]) != sigBlockMagic {
		return nil, ErrNoSignature
	}
	blockSize := binary.LittleEndian.Uint64(footer)
	if blockSize < 24 || blockSize > sigBlockMaxLen || int64(blockSize)+8 > cdOffset {
		return nil, fmt.Errorf("signing block size %d out of range", blockSize)
	}

	// pairs live between the leading size field and the footer
	start := cdOffset - int64(blockSize) - 8
	pairs := make([]byte, int(blockSize)-24)
	if _, err := ra.ReadAt(pairs, start+8); err != nil {
		return nil, err
	}

	found := make(map[uint32][]byte)
	for len(pairs) > 0 {
		if len(pairs) < 12 {
			return nil, errors.New("truncated signing block pair")
		}
		n := binary.LittleEndian.Uint64(pairs)
		if n < 4 || n > uint64(len(pairs)-8) {
			return nil, errors.New("signing block pair overruns block")
		}
		id := binary.LittleEndian.Uint32(pairs[8:])
		found[id] = pairs[12 : 8+n]
		pairs = pairs[8+n:]
	}

	for _, id := range []uint32{schemeV31, schemeV3, schemeV2} {
		if v, ok := found[id]; ok {
			return firstSignerCert(v)
		}
	}
	return nil, ErrNoSignature
}

// firstSignerCert digs signers[0].signedData.certificates[0] out of a v2 or
// v3 scheme value. Both schemes put certificates second in signed data.
func firstSignerCert(v []byte) ([]byte, error) {
	signers, _, err := lengthPrefixed(v)
	if err != nil {
		return nil, fmt.Errorf("signers: %w", err)
	}
	signer, _, err := lengthPrefixed(signers)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	signed, _, err := lengthPrefixed(signer)
	if err != nil {
		return nil, fmt.Errorf("signed data: %w", err)
	}
	_, rest, err := lengthPrefixed(signed)
	if err != nil {
		return nil, fmt.Errorf("digests: %w", err)
	}
	certs, _, err := lengthPrefixed(rest)
	if err != nil {
		return nil, fmt.Errorf("certificates: %w", err)
	}
	cert, _, err := lengthPrefixed(certs)
	if err != nil {
		return nil, ErrNoSignature
	}
	return cert, nil
}

func lengthPrefixed(b []byte) (value, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, io.ErrUnexpectedEOF
	}
	n := binary.LittleEndian.Uint32(b)
	if uint64(n) > uint64(len(b)-4) {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return b[4 : 4+n], b[4+n:], nil
}

func centralDirectoryOffset(ra io.ReaderAt, size int64) (int64, error) {
	if size < eocdMinSize {
		return 0, ErrNoSignature
	}
	// the comment is at most 64KiB
	tail := int64(eocdMinSize + 0xffff)
	if tail > size {
		tail = size
	}
	buf := make([]byte, tail)
	if _, err := ra.ReadAt(buf, size-tail); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	for i := len(buf) - eocdMinSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:]) != eocdMagic {
			continue
		}
		commentLen := int(binary.LittleEndian.Uint16(buf[i+20:]))
		if i+eocdMinSize+commentLen != len(buf) {
			continue
		}
		off := int64(binary.LittleEndian.Uint32(buf[i+16:]))
		if off > size-tail+int64(i) {
			return 0, errors.New("central directory offset past end of central directory record")
		}
		return off, nil
	}
	return 0, errors.New("end of central directory record not found")
}

func jarSignatureCert(src EntrySource) ([]byte, error) {
	for _, name := range src.Names() {
		dir, file := path.Split(name)
		if !strings.EqualFold(dir, "META-INF/") {
			continue
		}
		switch strings.ToUpper(path.Ext(file)) {
		case ".RSA", ".DSA", ".EC":
		default:
			continue
		}
		data, err := src.ReadFile(name, 1<<20)
		if err != nil {
			continue
		}
		p7, err := pkcs7.Parse(data)
		if err != nil {
			continue
		}
		if c := p7.GetOnlySigner(); c != nil {
			return bytes.Clone(c.Raw), nil
		}
		if len(p7.Certificates) > 0 {
			return bytes.Clone(p7.Certificates[0].Raw), nil
		}
	}
	return nil, ErrNoSignature
}
