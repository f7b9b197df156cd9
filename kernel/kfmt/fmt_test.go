package kfmt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintf(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	// mute vet warnings about malformed printf formatting strings
	printfn := Printf

	specs := []struct {
		fn        func()
		expOutput string
	}{
		{func() { printfn("no args") }, "no args"},
		{func() { printfn("%t", true) }, "true"},
		{func() { printfn("%41t", false) }, "false"},
		{func() { printfn("%s arg", "STRING") }, "STRING arg"},
		{func() { printfn("%s arg", []byte("BYTE SLICE")) }, "BYTE SLICE arg"},
		{func() { printfn("'%4s' arg with padding", "ABC") }, "' ABC' arg with padding"},
		{func() { printfn("'%4s' arg longer than padding", "ABCDE") }, "'ABCDE' arg longer than padding"},
		{func() { printfn("uint arg: %d", uint8(10)) }, "uint arg: 10"},
		{func() { printfn("uint arg: %o", uint16(0777)) }, "uint arg: 777"},
		{func() { printfn("uint arg: 0x%x", uint32(0xbadf00d)) }, "uint arg: 0xbadf00d"},
		{func() { printfn("uint arg with padding: '%10d'", uint64(123)) }, "uint arg with padding: '       123'"},
		{func() { printfn("uint arg with padding: '%4o'", uint64(0777)) }, "uint arg with padding: '0777'"},
		{func() { printfn("uint arg with padding: '0x%10x'", uint64(0xbadf00d)) }, "uint arg with padding: '0x000badf00d'"},
		{func() { printfn("uint arg longer than padding: '0x%5x'", int64(0xbadf00d)) }, "uint arg longer than padding: '0xbadf00d'"},
		{func() { printfn("uintptr 0x%x", uintptr(0xb8000)) }, "uintptr 0xb8000"},
		{func() { printfn("zero: %d", 0) }, "zero: 0"},
		{func() { printfn("max: %x", ^uint64(0)) }, "max: ffffffffffffffff"},
		{func() { printfn("int arg: %d", int8(-10)) }, "int arg: -10"},
		{func() { printfn("int arg: %o", int16(0777)) }, "int arg: 777"},
		{func() { printfn("int arg: %x", int32(-0xbadf00d)) }, "int arg: -badf00d"},
		{func() { printfn("int arg with padding: '%10d'", int64(-12345678)) }, "int arg with padding: ' -12345678'"},
		{func() { printfn("int arg with padding: '%10d'", int64(-123456789)) }, "int arg with padding: '-123456789'"},
		{func() { printfn("int arg with padding: '%10d'", int64(-1234567890)) }, "int arg with padding: '-1234567890'"},
		{func() { printfn("int arg with padding: '%10x'", int(-0xbadf00d)) }, "int arg with padding: '-00badf00d'"},
		{func() { printfn("int arg longer than padding: '%5x'", int(-0xbadf00d)) }, "int arg longer than padding: '-badf00d'"},
		{func() { printfn("%%%s%d%t", "foo", 123, true) }, `%foo123true`},
		{func() { printfn("more args", "foo", "bar", "baz") }, `more args%!(EXTRA)%!(EXTRA)%!(EXTRA)`},
		{func() { printfn("missing args %s") }, `missing args (MISSING)`},
		{func() { printfn("bad verb %Q") }, `bad verb %!(NOVERB)`},
		{func() { printfn("trailing %12") }, `trailing %!(NOVERB)`},
		{func() { printfn("not bool %t", "foo") }, `not bool %!(WRONGTYPE)`},
		{func() { printfn("not int %d", "foo") }, `not int %!(WRONGTYPE)`},
		{func() { printfn("not string %s", 123) }, `not string %!(WRONGTYPE)`},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	for specIndex, spec := range specs {
		buf.Reset()
		spec.fn()

		assert.Equal(t, spec.expOutput, buf.String(), "[spec %d]", specIndex)
	}
}

func TestFprintfLongOutput(t *testing.T) {
	var (
		buf   bytes.Buffer
		input = strings.Repeat("frame ", 3*lineBufSize)
	)

	Fprintf(&buf, "%s|%d", input, 42)
	require.Equal(t, input+"|42", buf.String())
	require.Zero(t, lineBufLen, "expected Fprintf to flush its line buffer")
}

func TestPrintfToRingBuffer(t *testing.T) {
	defer func() {
		outputSink = nil
		earlyPrintBuffer.head, earlyPrintBuffer.count = 0, 0
	}()

	outputSink = nil
	earlyPrintBuffer.head, earlyPrintBuffer.count = 0, 0

	Printf("[boot_mem_alloc] carved %d bytes\n", 1568)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	require.Equal(t, "[boot_mem_alloc] carved 1568 bytes\n", buf.String())

	buf.Reset()
	Printf("direct")
	require.Equal(t, "direct", buf.String())
}
