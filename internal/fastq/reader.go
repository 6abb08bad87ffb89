package fastq

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// gzip members start with 1F 8B
var gzipMagic = []byte{0x1f, 0x8b}

// gzipReadCloser closes the decompressor and the file behind it
type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Open opens a fastq file, decompressing it when it is gzipped.
// Detection uses the .gz suffix or the gzip magic number.
func Open(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(fh)
	sig, _ := br.Peek(len(gzipMagic))
	isGzip := strings.HasSuffix(path, ".gz") ||
		(len(sig) == len(gzipMagic) && sig[0] == gzipMagic[0] && sig[1] == gzipMagic[1])

	if !isGzip {
		return struct {
			io.Reader
			io.Closer
		}{br, fh}, nil
	}

	gr, err := gzip.NewReader(br)
	if err != nil {
		fh.Close()
		return nil, err
	}
	return &gzipReadCloser{Reader: gr, file: fh}, nil
}
