package provider

import "sync"

// Turn is one instruction and the model's answer to it
type Turn struct {
	Prompt   string
	Response string
}

func (t *Turn) GetPrompt() string   { return t.Prompt }
func (t *Turn) GetResponse() string { return t.Response }

// Conversation keeps the recent inline edit exchanges of each file so
// follow-up instructions can refer to earlier ones
type Conversation struct {
	mu       sync.Mutex
	maxTurns int
	turns    map[string][]*Turn
}

// NewConversation keeps up to maxTurns exchanges per file. Zero disables
// history.
func NewConversation(maxTurns int) *Conversation {
	return &Conversation{
		maxTurns: maxTurns,
		turns:    make(map[string][]*Turn),
	}
}

func (c *Conversation) Add(path, prompt, response string) {
	if c.maxTurns <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := append(c.turns[path], &Turn{Prompt: prompt, Response: response})
	if len(turns) > c.maxTurns {
		turns = turns[len(turns)-c.maxTurns:]
	}
	c.turns[path] = turns
}

// Turns returns the exchanges for path, oldest first
func (c *Conversation) Turns(path string) []*Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Turn, len(c.turns[path]))
	copy(out, c.turns[path])
	return out
}

func (c *Conversation) Clear(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.turns, path)
}
