package cache

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"io/fs"
	"net/netip"
	"os"
	"path/filepath"
	"sync/atomic"

	icache "github.com/jxo-me/ddnsd/core/cache"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// FileCache persists one ddns.Record to a single file.
//
// Layout, all integers big-endian:
//
//	0   4  magic "DDRS"
//	4   2  format version
//	6   2  reserved flags
//	8   4  payload length N
//	12  4  CRC-32 (IEEE) of bytes 0-11
//	16  N  msgpack payload
//	16+N 4 CRC-32 (IEEE) of the payload
//
// Writes go to a temp file in the same directory which is fsynced and then
// renamed over the target, so the target is either absent or complete.
type FileCache struct {
	path  string
	perm  os.FileMode
	flags atomic.Uint32
}

var _ icache.ICache = (*FileCache)(nil)

const (
	HeaderSize   = 16
	checksumSize = 4
	Version      = uint16(1)

	DefaultFileMode = os.FileMode(0o600)
	dirMode         = os.FileMode(0o755)
)

var Magic = [4]byte{'D', 'D', 'R', 'S'}

var (
	// ErrCorrupt matches every integrity failure below.
	ErrCorrupt         = icache.ErrCorrupt
	ErrTruncated       = &corruptError{"cache file is truncated"}
	ErrBadMagic        = &corruptError{"invalid cache file magic"}
	ErrVersionMismatch = &corruptError{"unsupported cache file version"}
	ErrHeaderChecksum  = &corruptError{"invalid cache file header checksum"}
	ErrPayloadChecksum = &corruptError{"invalid cache file payload checksum"}
	ErrDecode          = &corruptError{"undecodable cache file payload"}
)

type corruptError struct {
	msg string
}

func (e *corruptError) Error() string {
	return e.msg
}

func (e *corruptError) Is(target error) bool {
	return target == ErrCorrupt
}

// IsCorrupt reports whether err is an integrity failure rather than an I/O error.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}

type Option func(c *FileCache)

func WithFileMode(perm os.FileMode) Option {
	return func(c *FileCache) {
		c.perm = perm
	}
}

// WithFlags sets the reserved flags written by the next Set.
func WithFlags(flags uint16) Option {
	return func(c *FileCache) {
		c.flags.Store(uint32(flags))
	}
}

func New(path string, opts ...Option) *FileCache {
	c := &FileCache{
		path: filepath.Clean(path),
		perm: DefaultFileMode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FileCache) Path() string {
	return c.path
}

// Flags returns the reserved flags that the next Set will write.
func (c *FileCache) Flags() uint16 {
	return uint16(c.flags.Load())
}

// Init creates the parent directory of the cache file.
func (c *FileCache) Init() error {
	if err := os.MkdirAll(filepath.Dir(c.path), dirMode); err != nil {
		return errors.Wrap(err, "create cache directory")
	}
	return nil
}

// Clear removes the cache file. A missing file is not an error.
func (c *FileCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "remove cache file")
	}
	return nil
}

// payload is the msgpack wire form of a record; absent families are omitted.
type payload struct {
	V4 string `msgpack:"v4,omitempty"`
	V6 string `msgpack:"v6,omitempty"`
}

// Encode serializes record into the complete on-disk representation.
func Encode(record ddns.Record, flags uint16) ([]byte, error) {
	var p payload
	if record.V4.IsValid() {
		p.V4 = record.V4.String()
	}
	if record.V6.IsValid() {
		p.V6 = record.V6.String()
	}
	data, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, errors.Wrap(err, "encode cache payload")
	}
	if uint64(len(data)) > uint64(^uint32(0)) {
		return nil, errors.New("cache payload too large")
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(data)+checksumSize)
	copy(buf[0:4], Magic[:])
	binary.BigEndian.PutUint16(buf[4:6], Version)
	binary.BigEndian.PutUint16(buf[6:8], flags)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(data)))
	binary.BigEndian.PutUint32(buf[12:16], crc32.ChecksumIEEE(buf[0:12]))
	buf = append(buf, data...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(data))
	return buf, nil
}

// Set atomically replaces the cache file with record.
func (c *FileCache) Set(record ddns.Record) error {
	buf, err := Encode(record, c.Flags())
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return errors.Wrap(err, "create cache directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp cache file")
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(buf); err != nil {
		return errors.Wrap(err, "write temp cache file")
	}
	if err := tmp.Chmod(c.perm); err != nil {
		return errors.Wrap(err, "chmod temp cache file")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "sync temp cache file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp cache file")
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return errors.Wrap(err, "rename temp cache file")
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir makes the rename durable. Not every platform can fsync a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Get reads and validates the cache file. A missing file yields ok=false and
// no error; integrity failures match ErrCorrupt, anything else is an I/O error.
func (c *FileCache) Get() (record ddns.Record, ok bool, err error) {
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ddns.Record{}, false, nil
		}
		return ddns.Record{}, false, errors.Wrap(err, "open cache file")
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return ddns.Record{}, false, errors.Wrap(err, "stat cache file")
	}

	record, flags, err := decode(f, st.Size())
	if err != nil {
		return ddns.Record{}, false, err
	}
	c.flags.Store(uint32(flags))
	return record, true, nil
}

// Decode validates and parses a complete on-disk representation.
func Decode(data []byte) (ddns.Record, uint16, error) {
	return decode(bytes.NewReader(data), int64(len(data)))
}

func decode(r io.Reader, size int64) (ddns.Record, uint16, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if isEOF(err) {
			return ddns.Record{}, 0, errors.WithMessage(ErrTruncated, "could not read complete header")
		}
		return ddns.Record{}, 0, errors.Wrap(err, "read cache header")
	}

	if !bytes.Equal(header[0:4], Magic[:]) {
		return ddns.Record{}, 0, errors.WithMessagef(ErrBadMagic, "got %q", header[0:4])
	}
	if v := binary.BigEndian.Uint16(header[4:6]); v != Version {
		return ddns.Record{}, 0, errors.WithMessagef(ErrVersionMismatch, "got %d, want %d", v, Version)
	}
	flags := binary.BigEndian.Uint16(header[6:8])
	length := binary.BigEndian.Uint32(header[8:12])

	stored := binary.BigEndian.Uint32(header[12:16])
	if calculated := crc32.ChecksumIEEE(header[0:12]); stored != calculated {
		return ddns.Record{}, 0, errors.WithMessagef(ErrHeaderChecksum, "stored %08x != calculated %08x", stored, calculated)
	}

	if int64(HeaderSize)+int64(length)+checksumSize > size {
		return ddns.Record{}, 0, errors.WithMessagef(ErrTruncated, "payload of %d bytes exceeds file size %d", length, size)
	}

	data := make([]byte, int(length)+checksumSize)
	if _, err := io.ReadFull(r, data); err != nil {
		if isEOF(err) {
			return ddns.Record{}, 0, errors.WithMessage(ErrTruncated, "could not read complete payload")
		}
		return ddns.Record{}, 0, errors.Wrap(err, "read cache payload")
	}
	data, sum := data[:length], data[length:]

	stored = binary.BigEndian.Uint32(sum)
	if calculated := crc32.ChecksumIEEE(data); stored != calculated {
		return ddns.Record{}, 0, errors.WithMessagef(ErrPayloadChecksum, "stored %08x != calculated %08x", stored, calculated)
	}

	var p payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return ddns.Record{}, 0, errors.WithMessage(ErrDecode, err.Error())
	}
	record, err := p.record()
	if err != nil {
		return ddns.Record{}, 0, err
	}
	return record, flags, nil
}

func (p *payload) record() (record ddns.Record, err error) {
	for _, f := range []struct {
		version ddns.IPVersion
		value   string
	}{
		{ddns.V4, p.V4},
		{ddns.V6, p.V6},
	} {
		if f.value == "" {
			continue
		}
		addr, err := netip.ParseAddr(f.value)
		if err != nil {
			return ddns.Record{}, errors.WithMessagef(ErrDecode, "%s address %q", f.version, f.value)
		}
		if !f.version.Match(addr) {
			return ddns.Record{}, errors.WithMessagef(ErrDecode, "%s field holds %s", f.version, addr)
		}
		record.Set(f.version, addr)
	}
	return record, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
