package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_MergeErrors(t *testing.T) {
	assert.NoError(t, MergeErrors([]error{nil, nil}, "run"))
	err := MergeErrors([]error{errors.New("a"), nil, errors.New("b")}, "run")
	assert.EqualError(t, err, "run failed with 2 errors: a, b")
	err = MergeErrors([]error{nil, errors.New("c")}, "step")
	assert.EqualError(t, err, "step failed with 1 error: c")
}

func Test_ShowBytes(t *testing.T) {
	assert.Equal(t, "512 B", ShowBytes(512))
	assert.Equal(t, "1.5 kB", ShowBytes(1500))
}
