// Package seal encrypts backup members in place with a pre-shared 256-bit key.
//
// Sealed file layout:
//
//	magic (8 bytes) | base nonce (24 bytes) | chunk...
//
// Every chunk is a 4-byte big-endian length followed by a NaCl secretbox of
// up to chunkSize plaintext bytes. The chunk nonce is the base nonce XOR'd
// with the 1-based chunk number, the last chunk additionally flips the last
// nonce byte, so truncated or reordered files fail to open.
package seal

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	KeySize = 32
	Suffix  = ".bin"

	chunkSize = 64 * 1024
	nonceSize = 24
)

var magic = []byte("WPBSEAL1")

var (
	ErrInvalidKey    = errors.New("key must be exactly 32 bytes")
	ErrNotSealed     = errors.New("file is not sealed")
	ErrCorrupted     = errors.New("sealed file is corrupted or key is wrong")
	ErrMissingSuffix = errors.New("sealed file name must end with " + Suffix)
)

type Sealer struct {
	key [KeySize]byte
}

func New(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	s := &Sealer{}
	copy(s.key[:], key)

	return s, nil
}

// LoadKey reads the key file written by GenerateKey.
func LoadKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read key file")
	}

	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	return key, nil
}

// GenerateKey writes a new random key, refusing to overwrite an existing one.
func GenerateKey(path string) error {
	key := make([]byte, KeySize)

	_, err := io.ReadFull(rand.Reader, key)
	if err != nil {
		return errors.Wrap(err, "unable to generate key")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.Wrap(err, "unable to create key file")
	}

	_, err = f.Write(key)
	if err != nil {
		f.Close()
		return errors.Wrap(err, "unable to write key file")
	}

	return f.Close()
}

// Seal encrypts path into path+".bin" and removes path.
func (s *Sealer) Seal(path string) (string, error) {
	out := path + Suffix

	err := s.transform(path, out, s.SealStream)
	if err != nil {
		return "", err
	}

	err = os.Remove(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to remove unsealed file")
	}

	return out, nil
}

// Unseal decrypts path (ending with ".bin") next to it and keeps the sealed file.
func (s *Sealer) Unseal(path string) (string, error) {
	if !strings.HasSuffix(path, Suffix) {
		return "", ErrMissingSuffix
	}

	out := strings.TrimSuffix(path, Suffix)

	err := s.transform(path, out, s.UnsealStream)
	if err != nil {
		return "", err
	}

	return out, nil
}

// transform writes into a temporary file renamed over out once complete.
func (s *Sealer) transform(in, out string, fn func(io.Writer, io.Reader) error) (err error) {
	src, err := os.Open(in)
	if err != nil {
		return errors.Wrap(err, "unable to open source file")
	}
	defer src.Close()

	tmp := out + ".tmp"

	dst, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "unable to create destination file")
	}
	defer func() {
		if err != nil {
			dst.Close()
			os.Remove(tmp)
		}
	}()

	err = fn(dst, src)
	if err != nil {
		return err
	}

	err = dst.Sync()
	if err != nil {
		return errors.Wrap(err, "unable to sync destination file")
	}

	err = dst.Close()
	if err != nil {
		return errors.Wrap(err, "unable to close destination file")
	}

	err = os.Rename(tmp, out)
	if err != nil {
		return errors.Wrap(err, "unable to rename destination file")
	}

	return nil
}

// SealStream encrypts everything from r into w.
func (s *Sealer) SealStream(w io.Writer, r io.Reader) error {
	var nonce [nonceSize]byte

	_, err := io.ReadFull(rand.Reader, nonce[:])
	if err != nil {
		return errors.Wrap(err, "unable to generate nonce")
	}

	_, err = w.Write(magic)
	if err != nil {
		return errors.Wrap(err, "unable to write header")
	}

	_, err = w.Write(nonce[:])
	if err != nil {
		return errors.Wrap(err, "unable to write header")
	}

	br := bufio.NewReaderSize(r, chunkSize)
	buf := make([]byte, chunkSize)

	var chunk uint64
	for {
		n, err := io.ReadFull(br, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return errors.Wrap(err, "unable to read plaintext")
		}

		// A short read means the source is exhausted, a full one needs a peek
		last := err != nil
		if !last {
			_, peekErr := br.Peek(1)
			last = peekErr == io.EOF
		}

		chunk++
		chunkNonce := deriveNonce(nonce, chunk, last)
		box := secretbox.Seal(nil, buf[:n], &chunkNonce, &s.key)

		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(box)))

		if _, err := w.Write(size[:]); err != nil {
			return errors.Wrap(err, "unable to write chunk")
		}
		if _, err := w.Write(box); err != nil {
			return errors.Wrap(err, "unable to write chunk")
		}

		if last {
			return nil
		}
	}
}

// UnsealStream decrypts a stream produced by SealStream.
func (s *Sealer) UnsealStream(w io.Writer, r io.Reader) error {
	br := bufio.NewReader(r)

	header := make([]byte, len(magic)+nonceSize)

	_, err := io.ReadFull(br, header)
	if err != nil || string(header[:len(magic)]) != string(magic) {
		return ErrNotSealed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], header[len(magic):])

	var chunk uint64
	for {
		var size [4]byte

		_, err := io.ReadFull(br, size[:])
		if err != nil {
			// Stream ended before a chunk marked as last
			return ErrCorrupted
		}

		n := binary.BigEndian.Uint32(size[:])
		if n < secretbox.Overhead || n > chunkSize+secretbox.Overhead {
			return ErrCorrupted
		}

		box := make([]byte, n)

		_, err = io.ReadFull(br, box)
		if err != nil {
			return ErrCorrupted
		}

		_, peekErr := br.Peek(1)
		last := peekErr == io.EOF

		chunk++
		chunkNonce := deriveNonce(nonce, chunk, last)

		plain, ok := secretbox.Open(nil, box, &chunkNonce, &s.key)
		if !ok {
			return ErrCorrupted
		}

		_, err = w.Write(plain)
		if err != nil {
			return errors.Wrap(err, "unable to write plaintext")
		}

		if last {
			return nil
		}
	}
}

func deriveNonce(base [nonceSize]byte, chunk uint64, last bool) [nonceSize]byte {
	nonce := base

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], chunk)
	for i := 0; i < len(num); i++ {
		nonce[i] ^= num[i]
	}

	if last {
		nonce[nonceSize-1] ^= 0x01
	}

	return nonce
}
