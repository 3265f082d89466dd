package chatstream

import (
	"sync"

	"github.com/studybuddyai/buddy/pkg/llm"
)

// DefaultApology is appended to the transcript when a send fails.
const DefaultApology = "माफ़ कीजिए, कुछ समस्या हुई। कृपया दोबारा कोशिश करें।"

// DefaultGreeting opens a new conversation.
const DefaultGreeting = "नमस्ते! 👋 मैं Study Buddy AI का assistant हूं।\n\n" +
	"🎓 हम India का leading AI-powered study companion हैं जो Class 6-12 के students को better self-study habits develop करने में मदद करता है।\n\n" +
	"नीचे दिए options में से चुनें या कोई भी सवाल पूछें!"

// QuickAction is a canned first question offered under the greeting.
type QuickAction struct {
	Label   string
	Message string
}

// QuickActions are offered while the conversation holds only the greeting.
var QuickActions = []QuickAction{
	{Label: "🎓 About Us", Message: "Study Buddy AI क्या है?"},
	{Label: "📚 Features", Message: "आपके platform की main features क्या हैं?"},
	{Label: "🏫 For Schools", Message: "Schools के लिए यह कैसे helpful है?"},
	{Label: "📞 Contact", Message: "आपसे कैसे संपर्क करें?"},
}

// MergeSnapshot folds a snapshot into msgs. When the last message is an
// assistant message and msgs holds more than one message, its content is
// replaced; otherwise a new assistant message is appended. A lone assistant
// message is treated as a greeting and never overwritten.
//
// Merging the same snapshot twice leaves msgs unchanged the second time.
func MergeSnapshot(msgs []llm.Message, snapshot string) []llm.Message {
	if n := len(msgs); n > 1 && msgs[n-1].Role == llm.RoleAssistant {
		msgs[n-1].Content = snapshot
		return msgs
	}
	return append(msgs, llm.NewAssistantMessage(snapshot))
}

// Transcript is the conversation shown to the user. It tracks whether a send
// is in flight so that at most one stream feeds it at a time. Transcript is
// safe for concurrent use.
type Transcript struct {
	mu       sync.Mutex
	messages []llm.Message
	busy     bool
}

// NewTranscript returns a transcript opened by greeting, or an empty one
// when greeting is "".
func NewTranscript(greeting string) *Transcript {
	t := &Transcript{}
	if greeting != "" {
		t.messages = append(t.messages, llm.NewAssistantMessage(greeting))
	}
	return t
}

// RestoreTranscript returns a transcript continuing a saved conversation.
func RestoreTranscript(messages []llm.Message) *Transcript {
	return &Transcript{messages: llm.CloneMessages(messages)}
}

// Fresh reports whether the conversation holds at most the greeting.
func (t *Transcript) Fresh() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages) <= 1
}

// Messages returns a copy of the conversation.
func (t *Transcript) Messages() []llm.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return llm.CloneMessages(t.messages)
}

// Begin appends the user's text, marks the transcript busy and returns the
// history to send. It fails with ErrBusy when a send is already in flight.
func (t *Transcript) Begin(userText string) ([]llm.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.busy {
		return nil, ErrBusy
	}
	t.busy = true
	t.messages = append(t.messages, llm.NewUserMessage(userText))
	return llm.CloneMessages(t.messages), nil
}

// Merge folds snapshot into the conversation and returns the result.
func (t *Transcript) Merge(snapshot string) []llm.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = MergeSnapshot(t.messages, snapshot)
	return llm.CloneMessages(t.messages)
}

// Fail appends a static assistant message reporting a failed send.
func (t *Transcript) Fail(text string) []llm.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, llm.NewAssistantMessage(text))
	return llm.CloneMessages(t.messages)
}

// End clears the busy flag set by Begin.
func (t *Transcript) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = false
}

// Busy reports whether a send is in flight.
func (t *Transcript) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busy
}
