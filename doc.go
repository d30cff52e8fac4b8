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

// Package daq contains the fundamental record type and stream interfaces
// shared by the data-acquisition pipeline: the fixed-size Sample record
// that crosses the producer/consumer Sample FIFO, and the generic
// Reader/Writer interfaces implemented by Pipe and used by ReadFull and
// the daqtest helpers. The fifo, source, spool, and dsd packages define
// their own APIs rather than these interfaces.
//
// The interfaces here are designed to mirror and behave in a way that is
// expected and not surprising to a Go developer, the same way the Go io
// package does for bytes. A Sample is a small, fixed-size value (not a
// vector), since the FIFO and on-disk formats are both defined in terms of
// one record at a time; batching into slices is left to the callers that
// need it (source.Source.Read, reader.Reader.ReadAll).
package daq

// vim: foldmethod=marker
