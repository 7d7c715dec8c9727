package vectors

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// ErrInvalidFile is returned for vector files that are not a readable 2-D
// little-endian float NumPy array.
var ErrInvalidFile = errors.New("invalid vector file")

// DType is a NumPy element type the codec understands.
type DType string

const (
	Float16 DType = "<f2"
	Float32 DType = "<f4"
	Float64 DType = "<f8"
)

func (d DType) size() int {
	switch d {
	case Float16:
		return 2
	case Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// ParseDType accepts the short names used on the command line.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(s) {
	case "", "f4", "float32", "<f4":
		return Float32, nil
	case "f2", "float16", "<f2":
		return Float16, nil
	case "f8", "float64", "<f8":
		return Float64, nil
	}
	return "", fmt.Errorf("unsupported dtype '%s'", s)
}

var npyMagic = []byte("\x93NUMPY")

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

type npyHeader struct {
	dtype DType
	rows  int
	cols  int
}

// LoadNPY reads a .npy file from disk.
func LoadNPY(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadNPY(bufio.NewReaderSize(f, 1<<20))
}

// ReadNPY decodes a 2-D C-ordered float matrix. Rows are compacted to
// sparse form as they are read so the dense array is never held in memory.
func ReadNPY(r io.Reader) (*Matrix, error) {
	h, err := readNPYHeader(r)
	if err != nil {
		return nil, err
	}

	size := h.dtype.size()
	raw := make([]byte, h.cols*size)
	dense := make([]float32, h.cols)
	rows := make([]Sparse, h.rows)

	for i := 0; i < h.rows; i++ {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidFile, i, err)
		}
		decodeRow(h.dtype, raw, dense)
		rows[i] = compactRow(dense)
	}

	return NewMatrix(h.cols, rows)
}

func readNPYHeader(r io.Reader) (*npyHeader, error) {
	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrInvalidFile, err)
	}
	if !bytes.Equal(prefix[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidFile)
	}

	var headerLen int
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: header length: %v", ErrInvalidFile, err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: header length: %v", ErrInvalidFile, err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrInvalidFile, major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidFile, err)
	}
	return parseNPYHeader(string(header))
}

func parseNPYHeader(header string) (*npyHeader, error) {
	m := descrRe.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("%w: missing descr", ErrInvalidFile)
	}
	descr := m[1]
	if strings.HasPrefix(descr, "=") {
		descr = "<" + descr[1:]
	}
	dtype := DType(descr)
	if dtype.size() == 0 {
		return nil, fmt.Errorf("%w: unsupported dtype %q", ErrInvalidFile, m[1])
	}

	if m := fortranRe.FindStringSubmatch(header); m == nil || m[1] != "False" {
		return nil, fmt.Errorf("%w: only C-ordered arrays are supported", ErrInvalidFile)
	}

	m = shapeRe.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("%w: missing shape", ErrInvalidFile)
	}
	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad shape %q", ErrInvalidFile, m[1])
		}
		dims = append(dims, n)
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("%w: expected a 2-D array, got shape (%s)", ErrInvalidFile, m[1])
	}

	return &npyHeader{dtype: dtype, rows: dims[0], cols: dims[1]}, nil
}

func decodeRow(dtype DType, raw []byte, dst []float32) {
	switch dtype {
	case Float16:
		for j := range dst {
			dst[j] = float16.Frombits(binary.LittleEndian.Uint16(raw[j*2:])).Float32()
		}
	case Float32:
		for j := range dst {
			dst[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[j*4:]))
		}
	case Float64:
		for j := range dst {
			dst[j] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[j*8:])))
		}
	}
}

func encodeRow(dtype DType, src []float32, raw []byte) {
	switch dtype {
	case Float16:
		for j, v := range src {
			binary.LittleEndian.PutUint16(raw[j*2:], float16.Fromfloat32(v).Bits())
		}
	case Float32:
		for j, v := range src {
			binary.LittleEndian.PutUint32(raw[j*4:], math.Float32bits(v))
		}
	case Float64:
		for j, v := range src {
			binary.LittleEndian.PutUint64(raw[j*8:], math.Float64bits(float64(v)))
		}
	}
}

// WriteNPY encodes m as a dense C-ordered array of the given dtype.
func WriteNPY(w io.Writer, m *Matrix, dtype DType) error {
	size := dtype.size()
	if size == 0 {
		return fmt.Errorf("unsupported dtype '%s'", dtype)
	}

	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", dtype, m.Rows(), m.Dim())

	// Total header (magic, version, length, dict, newline) is padded to a
	// multiple of 64 bytes.
	version := byte(1)
	lenBytes := 2
	if len(dict)+1+len(npyMagic)+2+2 > math.MaxUint16 {
		version, lenBytes = 2, 4
	}
	pre := len(npyMagic) + 2 + lenBytes
	pad := 64 - (pre+len(dict)+1)%64
	if pad == 64 {
		pad = 0
	}
	header := dict + strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{version, 0})
	if lenBytes == 2 {
		binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	} else {
		binary.Write(bw, binary.LittleEndian, uint32(len(header)))
	}
	bw.WriteString(header)

	dense := make([]float32, m.Dim())
	raw := make([]byte, m.Dim()*size)
	for i := 0; i < m.Rows(); i++ {
		m.Dense(i, dense)
		encodeRow(dtype, dense, raw)
		if _, err := bw.Write(raw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveNPY writes m to path.
func SaveNPY(path string, m *Matrix, dtype DType) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteNPY(f, m, dtype); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
