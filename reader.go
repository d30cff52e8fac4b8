// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

package daq

import (
	"fmt"
	"io"
)

var (
	// ErrShortBuffer will return if the buffer passed in is smaller than
	// the minimum number of records required by the callee.
	ErrShortBuffer error = fmt.Errorf("daq: short read")

	// ErrUnexpectedEOF will return if io.EOF was reached before a read
	// could be completed.
	ErrUnexpectedEOF error = fmt.Errorf("daq: unexpected EOF")
)

// Reader is the interface wrapping the basic record-oriented Read method,
// implemented by Pipe and used by the daqtest helpers and ReadFull/
// ReadAtLeast below.
type Reader interface {
	// Read fills buf with as many Sample records as are presently
	// available, returning the count read (not bytes) and any error
	// encountered.
	Read(buf []Sample) (int, error)
}

// Closer is the interface wrapping the basic Close method.
type Closer interface {
	Close() error
}

// ReadCloser groups the basic Read and Close methods.
type ReadCloser interface {
	Reader
	Closer
}

// ReadFull reads exactly len(buf) records from r into buf.
func ReadFull(r Reader, buf []Sample) (int, error) {
	return ReadAtLeast(r, buf, len(buf))
}

// ReadAtLeast reads from r into buf until it has read at least min
// records.
func ReadAtLeast(r Reader, buf []Sample, min int) (int, error) {
	if len(buf) < min {
		return 0, ErrShortBuffer
	}
	var (
		n   int
		err error
	)
	for n < min && err == nil {
		var nn int
		nn, err = r.Read(buf[n:])
		n += nn
	}
	if n >= min {
		return n, err
	} else if n > 0 && err == io.EOF {
		return n, ErrUnexpectedEOF
	}
	return n, err
}

// vim: foldmethod=marker
