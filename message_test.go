package ircd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageRender(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected string
	}{
		{
			name: "valid message",
			msg: Message{
				Source:   "irc.someserver.net",
				Command:  CmdPrivMsg,
				Params:   []string{"nick1!someuser@irc.somehost.org"},
				Trailing: "I am the server",
			},
			expected: ":irc.someserver.net PRIVMSG nick1!someuser@irc.somehost.org :I am the server\r\n",
		},
		{
			name: "numeric code message",
			msg: Message{
				Source:   "irc.someserver.net",
				Code:     ReplyWelcome,
				Params:   []string{"nick1!someuser@irc.somehost.org"},
				Trailing: "Welcome to the server",
			},
			expected: ":irc.someserver.net 001 nick1!someuser@irc.somehost.org :Welcome to the server\r\n",
		},
		{
			name: "message with tags",
			msg: Message{
				Tags:     map[string]string{"time": "2023-01-01T00:00:00Z"},
				Source:   "irc.someserver.net",
				Command:  CmdPrivMsg,
				Params:   []string{"#channel"},
				Trailing: "hello",
			},
			expected: "@time=2023-01-01T00:00:00Z :irc.someserver.net PRIVMSG #channel :hello\r\n",
		},
		{
			name: "no trailing",
			msg: Message{
				Source:  "irc.someserver.net",
				Command: CmdPing,
			},
			expected: ":irc.someserver.net PING\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.msg.Render())
			assert.Equal(t, tt.expected, tt.msg.String())
		})
	}
}

func TestMessageScrub(t *testing.T) {
	msg := &Message{
		Tags:     map[string]string{"a": "b"},
		Source:   "nick!user@host",
		Command:  CmdPrivMsg,
		Params:   []string{"#channel"},
		Trailing: "hi",
		Code:     1,
	}

	msg.Scrub()

	assert.Nil(t, msg.Tags)
	assert.Empty(t, msg.Source)
	assert.Empty(t, msg.Command)
	assert.Nil(t, msg.Params)
	assert.Empty(t, msg.Trailing)
	assert.Zero(t, msg.Code)
}

func TestMessageDebug(t *testing.T) {
	msg := Message{
		Source:   "irc.someserver.net",
		Code:     ReplyWelcome,
		Params:   []string{"nick1!someuser@irc.somehost.org"},
		Trailing: "Welcome to the server",
	}

	assert.JSONEq(t,
		`{"Tags":null,"Source":"irc.someserver.net","Trailing":"Welcome to the server","Params":["nick1!someuser@irc.somehost.org"],"Command":"","Code":1}`,
		msg.Debug(),
	)
}
