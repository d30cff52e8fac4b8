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

// Package daqtest holds shared test helpers for the daq module's Reader
// and Writer implementations, in the same spirit as the standard library's
// iotest: small generic checks that every concrete Reader/Writer is
// expected to satisfy.
package daqtest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"hz.tools/daq"
)

// TestReadWriteSamples checks that writing a specific number of Sample
// records comes out the Reader on the other end, in order.
func TestReadWriteSamples(t *testing.T, name string, r daq.Reader, w daq.Writer) {
	t.Run(name, func(t *testing.T) {
		var (
			chunk  = 1024
			chunks = 32
			wg     = sync.WaitGroup{}
		)

		go func() {
			defer wg.Done()
			wb := make([]daq.Sample, chunk)
			for i := 0; i < chunks; i++ {
				n, err := w.Write(wb)
				assert.NoError(t, err)
				assert.Equal(t, chunk, n)
			}
		}()
		wg.Add(1)

		rb := make([]daq.Sample, chunk*chunks)
		n, err := daq.ReadFull(r, rb)
		assert.NoError(t, err)
		assert.Equal(t, chunk*chunks, n)

		wg.Wait()
	})
}

// TestReader runs a small battery of checks every daq.Reader
// implementation is expected to satisfy without panicking.
func TestReader(t *testing.T, name string, r daq.Reader) {
	t.Run(name, func(t *testing.T) {
		t.Run("ReadEmpty", func(t *testing.T) {
			n, err := r.Read(nil)
			assert.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	})
}

// vim: foldmethod=marker
