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
	"context"
	"fmt"
)

var (
	// ErrPipeClosed will be returned when the Pipe is closed.
	ErrPipeClosed = fmt.Errorf("daq: pipe is closed")
)

// PipeReader is the Read interface exposed by the Pipe.
type PipeReader interface {
	ReadCloser

	// CloseWithError will Close the pipe with a specific Error rather than
	// the default ErrPipeClosed. This can be useful if code is expecting an
	// io.EOF, for instance.
	CloseWithError(error) error
}

// PipeWriter is the Write interface exposed by the Pipe.
type PipeWriter interface {
	WriteCloser

	// CloseWithError will Close the pipe with a specific Error rather than
	// the default ErrPipeClosed. This can be useful if code is expecting an
	// io.EOF, for instance.
	CloseWithError(error) error
}

// PipeReadWriter is the Read/Write interface exposed by a Pipe.
type PipeReadWriter interface {
	PipeReader
	PipeWriter
}

// pipe is a riff on io.Pipe in the Go stdlib, tweaked to carry batches of
// daq.Sample rather than bytes. It patches a push (Write) endpoint into
// something that can be read from synchronously; in this module it's
// exercised by the root package's tests.
type pipe struct {
	context context.Context
	cancel  context.CancelFunc

	samplesCh     chan []Sample
	readSamplesCh chan int

	samplesPerSecond uint

	err error
}

// copySamples copies as many records as will fit in dst from src,
// returning the count copied.
func copySamples(dst, src []Sample) int {
	return copy(dst, src)
}

// Read implements the daq.Reader interface.
func (p *pipe) Read(b []Sample) (int, error) {
	if err := p.getErr(); err != nil {
		return 0, err
	}

	if len(b) == 0 {
		return 0, nil
	}

	select {
	case sample := <-p.samplesCh:
		numRead := copySamples(b, sample)
		p.readSamplesCh <- numRead
		return numRead, nil
	case <-p.context.Done():
		return 0, p.getErr()
	}
}

func (p *pipe) getErr() error {
	if err := p.context.Err(); err == nil {
		return nil
	}
	if p.err != nil {
		return p.err
	}
	return ErrPipeClosed
}

// Write implements the daq.Writer interface.
func (p *pipe) Write(b []Sample) (int, error) {
	if err := p.getErr(); err != nil {
		return 0, err
	}

	var n int

	for len(b) > 0 {
		select {
		case p.samplesCh <- b:
			numWritten := <-p.readSamplesCh
			b = b[numWritten:]
			n += numWritten
		case <-p.context.Done():
			return n, p.getErr()
		}
	}

	return n, nil
}

// SampleRate reports the records-per-second rate this pipe was created
// with, or 0 if the pipe does not represent a fixed-rate stream.
func (p *pipe) SampleRate() uint {
	return p.samplesPerSecond
}

// CloseWithError implements the daq.PipeReader/daq.PipeWriter interface.
func (p *pipe) CloseWithError(err error) error {
	p.err = err
	return p.Close()
}

// Close implements the daq.ReadCloser/daq.WriteCloser interface.
func (p *pipe) Close() error {
	// This should explicitly be not doing anything further, since the core
	// mechanism here is that the context is cancelled, so relying on this
	// method being called is not a safe assumption. This is merely to adapt
	// the context into a Read/Write Closer to maintain interop with people's
	// mental models and in cases where a context is not passed into the Pipe.
	p.cancel()
	return nil
}

// Pipe creates a new daq.Reader and daq.Writer that allow writes to pass
// through and show up to a reader. This allows "patching" a Write
// endpoint into a "Read" endpoint.
func Pipe(samplesPerSecond uint) (PipeReader, PipeWriter) {
	ctx := context.Background()
	return PipeWithContext(ctx, samplesPerSecond)
}

// PipeWithContext creates a new daq.Reader and daq.Writer as returned by
// the Pipe call, but with a custom Context controlling the pipe's
// lifecycle from the outside.
func PipeWithContext(
	ctx context.Context,
	samplesPerSecond uint,
) (PipeReader, PipeWriter) {
	ctx, cancel := context.WithCancel(ctx)
	p := &pipe{
		context:          ctx,
		cancel:           cancel,
		samplesPerSecond: samplesPerSecond,
		samplesCh:        make(chan []Sample),
		readSamplesCh:    make(chan int),
	}
	return p, p
}

// vim: foldmethod=marker
