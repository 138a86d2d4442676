// Package history holds the conversation log that lets the debugging
// operation build on its earlier answers.
package history

import "sync"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a conversation. Turns are values; once appended
// they are never modified.
type Turn struct {
	Role Role
	Text string
}

// UserTurn is a convenience constructor for a single-shot prompt.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// DefaultMaxTurns is the cap used when a Context is created through New
// with a negative limit.
const DefaultMaxTurns = 40

// Context is an append-only, ordered conversation log shared by every
// invocation of one operation. It is safe for concurrent use.
type Context struct {
	mu       sync.Mutex
	turns    []Turn
	maxTurns int
}

// New returns an empty Context. maxTurns caps the number of retained turns;
// zero means unbounded and a negative value selects DefaultMaxTurns.
func New(maxTurns int) *Context {
	if maxTurns < 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Context{maxTurns: maxTurns}
}

// Append adds a single turn at the end of the log.
func (c *Context) Append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
	c.evict()
}

// AppendExchange adds a user prompt and the model's reply as one unit, so
// concurrent callers can never split a pair.
func (c *Context) AppendExchange(prompt, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns,
		Turn{Role: RoleUser, Text: prompt},
		Turn{Role: RoleModel, Text: reply},
	)
	c.evict()
}

// Snapshot returns a copy of the log in insertion order.
func (c *Context) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len reports the number of retained turns.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Reset drops every turn.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// evict drops the oldest turns once the cap is exceeded. Whole leading
// user/model pairs are removed so the log keeps starting with a user turn.
// Callers must hold c.mu.
func (c *Context) evict() {
	if c.maxTurns == 0 || len(c.turns) <= c.maxTurns {
		return
	}
	drop := len(c.turns) - c.maxTurns
	for drop < len(c.turns) && c.turns[drop].Role != RoleUser {
		drop++
	}
	c.turns = append([]Turn(nil), c.turns[drop:]...)
}
