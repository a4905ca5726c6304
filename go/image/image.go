// Package image reads applications out of the image store.
//
// A single-app store holds an 8 byte little endian length followed by that
// many bytes of ELF. A multi-app store holds a 4 byte app count, then for each
// app an 8 byte size and the app bytes.
package image

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/lunixbochs/plashload/go/models"
)

type Header struct {
	Length uint64 `struc:"uint64"`
}

type AppsHeader struct {
	Count uint32 `struc:"uint32"`
}

type AppHeader struct {
	Size uint64 `struc:"uint64"`
}

const (
	HeaderSize    = 8
	appsHeaderSz  = 4
	appHeaderSize = 8
)

var order = binary.LittleEndian

// Store is a read-only view of the image store placed at Base.
type Store struct {
	Base uint64
	data []byte

	unmap func() error
}

func New(base uint64, data []byte) *Store {
	return &Store{Base: base, data: data}
}

// Open maps the store file read-only.
func Open(path string, base uint64) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if fi.Size() == 0 {
		return New(base, nil), nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", path)
	}
	s := New(base, data)
	s.unmap = func() error { return unix.Munmap(data) }
	return s, nil
}

func (s *Store) Close() error {
	if s.unmap == nil {
		return nil
	}
	err := s.unmap()
	s.unmap = nil
	s.data = nil
	return errors.WithStack(err)
}

func (s *Store) Size() uint64 {
	return uint64(len(s.data))
}

func (s *Store) stream(off uint64) *models.StrucStream {
	return &models.StrucStream{Stream: bytes.NewBuffer(s.data[off:]), Order: order}
}

func (s *Store) Header() (*Header, error) {
	if s.Size() < HeaderSize {
		return nil, models.LoadErrorf(models.TruncatedImage, 0, "", "store is %d bytes, header needs %d", s.Size(), HeaderSize)
	}
	var h Header
	if err := s.stream(0).Unpack(&h); err != nil {
		return nil, models.WrapLoadError(err, models.TruncatedImage, "reading image header")
	}
	return &h, nil
}

// Blob returns the ELF bytes of a single-app store without copying.
func (s *Store) Blob() ([]byte, error) {
	h, err := s.Header()
	if err != nil {
		return nil, err
	}
	if h.Length > s.Size()-HeaderSize {
		return nil, models.LoadErrorf(models.TruncatedImage, HeaderSize, "", "header claims 0x%x bytes, store holds 0x%x", h.Length, s.Size()-HeaderSize)
	}
	return s.data[HeaderSize : HeaderSize+h.Length], nil
}

// Apps splits a multi-app store.
func (s *Store) Apps() ([][]byte, error) {
	if s.Size() < appsHeaderSz {
		return nil, models.LoadErrorf(models.TruncatedImage, 0, "", "store is %d bytes, app count needs %d", s.Size(), appsHeaderSz)
	}
	var ah AppsHeader
	if err := s.stream(0).Unpack(&ah); err != nil {
		return nil, models.WrapLoadError(err, models.TruncatedImage, "reading app count")
	}
	var apps [][]byte
	off := uint64(appsHeaderSz)
	for i := uint32(0); i < ah.Count; i++ {
		if s.Size()-off < appHeaderSize {
			return nil, models.LoadErrorf(models.TruncatedImage, off, "", "app %d header past end of store", i)
		}
		var h AppHeader
		if err := s.stream(off).Unpack(&h); err != nil {
			return nil, models.WrapLoadError(err, models.TruncatedImage, "reading app %d header", i)
		}
		off += appHeaderSize
		if h.Size > s.Size()-off {
			return nil, models.LoadErrorf(models.TruncatedImage, off, "", "app %d claims 0x%x bytes, 0x%x left", i, h.Size, s.Size()-off)
		}
		apps = append(apps, s.data[off:off+h.Size])
		off += h.Size
	}
	return apps, nil
}

func (s *Store) App(i int) ([]byte, error) {
	apps, err := s.Apps()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(apps) {
		return nil, errors.Errorf("app %d out of range, store holds %d", i, len(apps))
	}
	return apps[i], nil
}

// Pack writes a single-app store.
func Pack(w io.Writer, blob []byte) error {
	if err := struc.PackWithOrder(w, &Header{Length: uint64(len(blob))}, order); err != nil {
		return errors.Wrap(err, "failed to pack header")
	}
	_, err := w.Write(blob)
	return errors.WithStack(err)
}

// PackApps writes a multi-app store.
func PackApps(w io.Writer, apps [][]byte) error {
	if err := struc.PackWithOrder(w, &AppsHeader{Count: uint32(len(apps))}, order); err != nil {
		return errors.Wrap(err, "failed to pack app count")
	}
	for _, app := range apps {
		if err := struc.PackWithOrder(w, &AppHeader{Size: uint64(len(app))}, order); err != nil {
			return errors.Wrap(err, "failed to pack app header")
		}
		if _, err := w.Write(app); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
