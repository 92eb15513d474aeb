package fallback

import (
	"context"
	"errors"
	"fmt"
	"testing"

	anyllm "github.com/mozilla-ai/any-llm-go"
)

// scriptedBackend returns canned replies and records the conversations it saw.
type scriptedBackend struct {
	replies []string
	err     error
	seen    [][]anyllm.Message
}

func (b *scriptedBackend) Complete(_ context.Context, messages []anyllm.Message) (string, error) {
	copied := make([]anyllm.Message, len(messages))
	copy(copied, messages)
	b.seen = append(b.seen, copied)
	if b.err != nil {
		return "", b.err
	}
	if len(b.replies) == 0 {
		return "sounds good to me", nil
	}
	reply := b.replies[0]
	b.replies = b.replies[1:]
	return reply, nil
}

func TestReplyReturnsModelOutput(t *testing.T) {
	backend := &scriptedBackend{replies: []string{"Sure, I can do that."}}
	r := New("", "primary", backend)

	got, err := r.Reply(context.Background(), "can you take notes")
	if err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if got != "Sure, I can do that." {
		t.Fatalf("Reply() = %q", got)
	}

	if len(backend.seen) != 1 {
		t.Fatalf("backend called %d times, want 1", len(backend.seen))
	}
	msgs := backend.seen[0]
	if msgs[0].Role != anyllm.RoleSystem {
		t.Fatalf("first message role = %q, want system", msgs[0].Role)
	}
	last := msgs[len(msgs)-1]
	if last.Role != anyllm.RoleUser || last.Content != "can you take notes" {
		t.Fatalf("last message = %+v, want the heard text as user", last)
	}
}

func TestReplyCarriesConversationForward(t *testing.T) {
	backend := &scriptedBackend{replies: []string{"Paris is nice.", "About two million people."}}
	r := New("", "primary", backend)

	if _, err := r.Reply(context.Background(), "what do you think of paris"); err != nil {
		t.Fatalf("first Reply() error: %v", err)
	}
	if _, err := r.Reply(context.Background(), "how big is it"); err != nil {
		t.Fatalf("second Reply() error: %v", err)
	}

	msgs := backend.seen[1]
	// system + user + assistant + user
	if len(msgs) != 4 {
		t.Fatalf("second call saw %d messages, want 4", len(msgs))
	}
	if msgs[2].Role != anyllm.RoleAssistant || msgs[2].Content != "Paris is nice." {
		t.Fatalf("previous reply missing from conversation: %+v", msgs[2])
	}
}

func TestReplyTrimsHistoryKeepingSystem(t *testing.T) {
	backend := &scriptedBackend{}
	r := New("custom system prompt", "primary", backend)

	for i := 0; i < 10; i++ {
		if _, err := r.Reply(context.Background(), fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("Reply() error: %v", err)
		}
	}

	final := backend.seen[len(backend.seen)-1]
	if len(final) > historyLimit {
		t.Fatalf("conversation grew to %d messages, want at most %d", len(final), historyLimit)
	}
	if final[0].Role != anyllm.RoleSystem || final[0].Content != "custom system prompt" {
		t.Fatalf("system message lost after trimming: %+v", final[0])
	}
}

func TestReplyFailsOverToNextModel(t *testing.T) {
	primary := &scriptedBackend{err: errors.New("rate limited")}
	secondary := &scriptedBackend{replies: []string{"backup reply here"}}
	r := New("", "big-model", primary, WithFallbackModel("small-model", secondary))

	got, err := r.Reply(context.Background(), "hello everyone")
	if err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if got != "backup reply here" {
		t.Fatalf("Reply() = %q, want the secondary model's output", got)
	}
	if len(primary.seen) != 1 || len(secondary.seen) != 1 {
		t.Fatalf("call counts = %d/%d, want 1/1", len(primary.seen), len(secondary.seen))
	}
}

func TestReplyRejectsDegenerateOutput(t *testing.T) {
	primary := &scriptedBackend{replies: []string{".."}}
	secondary := &scriptedBackend{replies: []string{"a real answer"}}
	r := New("", "primary", primary, WithFallbackModel("secondary", secondary))

	got, err := r.Reply(context.Background(), "say something")
	if err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if got != "a real answer" {
		t.Fatalf("Reply() = %q, want degenerate output skipped", got)
	}
}

func TestReplyAllModelsFail(t *testing.T) {
	primary := &scriptedBackend{err: errors.New("down")}
	r := New("", "primary", primary)

	if _, err := r.Reply(context.Background(), "anyone there"); err == nil {
		t.Fatal("Reply() = nil error, want failure when every model fails")
	}
}

func TestCleanReply(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain answer", "plain answer"},
		{"  padded  ", "padded"},
		{"<think>internal reasoning</think>The lights are on.", "The lights are on."},
		{"<think>a</think>mid<think>b</think>final text", "final text"},
	}
	for _, tt := range tests {
		if got := CleanReply(tt.in); got != tt.want {
			t.Fatalf("CleanReply(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
