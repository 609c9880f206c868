package ircd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessagePoolNew(t *testing.T) {
	msg := messagePool.New()
	assert.NotNil(t, msg)
}

func TestMessagePoolRecycleScrubs(t *testing.T) {
	msg := &Message{
		Tags:     map[string]string{"a": "b"},
		Source:   "irc.someserver.org",
		Code:     ReplyWelcome,
		Command:  CmdPrivMsg,
		Params:   []string{"somenick"},
		Trailing: "I am the server.",
	}

	messagePool.Recycle(msg)

	recycled := messagePool.New()
	assert.Empty(t, recycled.Source)
	assert.Equal(t, ReplyNone, recycled.Code)
	assert.Empty(t, recycled.Command)
	assert.Nil(t, recycled.Params)
	assert.Empty(t, recycled.Trailing)
	assert.Nil(t, recycled.Tags)
}
