package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithComponentIsUsableBeforeConfigure(t *testing.T) {
	l := WithComponent("poller")
	assert.NotPanics(t, func() { l.Debug().Msg("hello") })
}
