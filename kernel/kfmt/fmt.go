// Package kfmt implements the kernel's formatted output. Everything in this
// package works before the Go allocator is available: formatting goes through
// fixed package-level buffers and never builds strings on the heap.
package kfmt

import "io"

const (
	// lineBufSize is the number of formatted bytes accumulated before they
	// are handed to the output sink.
	lineBufSize = 128

	// numBufSize is large enough for a 64-bit value printed in base 8 plus a
	// sign.
	numBufSize = 24

	digits = "0123456789abcdef"
)

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// lineBuf collects output until it fills up or Fprintf returns.
	lineBuf    [lineBufSize]byte
	lineBufLen int

	numBuf [numBufSize]byte

	// earlyPrintBuffer captures Printf output until an output sink is
	// attached via SetOutputSink.
	earlyPrintBuffer ringBuffer

	// outputSink receives Printf output. When nil, output is kept in
	// earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink makes w the target of Printf and replays any output that was
// captured before a sink was available.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// Printf writes formatted output to the active sink. It supports the
// following verbs:
//
//	%s  string or []byte
//	%d  integer, base 10
//	%x  integer, base 16 (lower-case)
//	%o  integer, base 8
//	%t  bool
//	%%  a literal percent sign
//
// A decimal width may precede the verb. Strings and base-10 integers are
// left-padded with spaces; base-8 and base-16 integers are left-padded with
// zeroes.
//
// Printf does not fall back to fmt.Stringer and does not support %p or %v;
// both would pull in reflection and heap allocations.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves like Printf but writes to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			putByte(w, format[i])
			continue
		}

		width = 0
		for i++; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == len(format) {
			putBytes(w, errNoVerb)
			break
		}

		verb := format[i]
		switch verb {
		case '%':
			putByte(w, '%')
			continue
		case 'd', 'x', 'o', 's', 't':
		default:
			putBytes(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			putBytes(w, errMissingArg)
			continue
		}

		arg := args[argIndex]
		argIndex++

		switch verb {
		case 'd':
			fmtInt(w, arg, 10, width)
		case 'x':
			fmtInt(w, arg, 16, width)
		case 'o':
			fmtInt(w, arg, 8, width)
		case 's':
			fmtString(w, arg, width)
		case 't':
			fmtBool(w, arg)
		}
	}

	for ; argIndex < len(args); argIndex++ {
		putBytes(w, errExtraArg)
	}

	flush(w)
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		putBytes(w, errWrongArgType)
	case b:
		putBytes(w, trueValue)
	default:
		putBytes(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		putRepeat(w, ' ', width-len(s))
		for i := 0; i < len(s); i++ {
			putByte(w, s[i])
		}
	case []byte:
		putRepeat(w, ' ', width-len(s))
		putBytes(w, s)
	default:
		putBytes(w, errWrongArgType)
	}
}

// fmtInt writes v in the requested base. All built-in integer types are
// accepted; negative values are prefixed with a minus sign which counts
// towards width.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		uval uint64
		sval int64
		neg  bool
	)

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		sval = int64(n)
	case int16:
		sval = int64(n)
	case int32:
		sval = int64(n)
	case int64:
		sval = n
	case int:
		sval = int64(n)
	default:
		putBytes(w, errWrongArgType)
		return
	}

	if sval < 0 {
		neg, uval = true, uint64(-sval)
	} else if sval > 0 {
		uval = uint64(sval)
	}

	pos := numBufSize
	for {
		pos--
		numBuf[pos] = digits[uval%base]
		uval /= base
		if uval == 0 {
			break
		}
	}

	padLen := width - (numBufSize - pos)
	if neg {
		padLen--
	}

	if base == 10 {
		putRepeat(w, ' ', padLen)
		if neg {
			putByte(w, '-')
		}
	} else {
		if neg {
			putByte(w, '-')
		}
		putRepeat(w, '0', padLen)
	}

	putBytes(w, numBuf[pos:])
}

func putRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		putByte(w, ch)
	}
}

func putBytes(w io.Writer, p []byte) {
	for _, b := range p {
		putByte(w, b)
	}
}

func putByte(w io.Writer, b byte) {
	if lineBufLen == lineBufSize {
		flush(w)
	}

	lineBuf[lineBufLen] = b
	lineBufLen++
}

// flush hands the pending bytes in lineBuf to w, or to the early ring buffer
// when no writer is available.
func flush(w io.Writer) {
	if lineBufLen == 0 {
		return
	}

	if w != nil {
		w.Write(lineBuf[:lineBufLen])
	} else {
		earlyPrintBuffer.Write(lineBuf[:lineBufLen])
	}
	lineBufLen = 0
}
