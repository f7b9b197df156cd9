package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "buddy_alloc",
		Message: "out of memory",
	}

	require.Equal(t, err.Message, err.Error())

	var asErr error = err
	require.EqualError(t, asErr, "out of memory")
}
