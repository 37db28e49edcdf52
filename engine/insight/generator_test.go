package insight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scentmatch/scentmatch/engine/domain"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

const validReply = `{"characteristics":"warm and curious","ideal_scent":"vanilla, amber, a little smoke","persona":"Dreamer","query":"warm sweet vanilla amber perfume"}`

func sampleAnswers() domain.QuestionnaireAnswers {
	return domain.QuestionnaireAnswers{
		Name: "Ayu", Email: "ayu@example.com",
		Q1: "all day", Q2: "evenings", Q3: "calm", Q4: "vanilla", Q5: "sweet",
		Q6: "office work", Q7: "my mother's", Q8: "feminine", Q9: "soft", Q10: "night",
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"bare json", validReply},
		{"fenced json", "```json\n" + validReply + "\n```"},
		{"fenced no language", "```\n" + validReply + "\n```"},
		{"fenced with padding", "  ```json\n" + validReply + "\n```  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(&fakeCompleter{reply: tt.reply}, nil)
			in, err := g.Generate(context.Background(), sampleAnswers())
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if in.Persona != "Dreamer" {
				t.Fatalf("persona: got %q", in.Persona)
			}
			if in.Query != "warm sweet vanilla amber perfume" {
				t.Fatalf("query: got %q", in.Query)
			}
		})
	}
}

func TestGenerate_MalformedReply(t *testing.T) {
	for _, reply := range []string{
		"sorry, I cannot help with that",
		"```json\nnot json at all\n```",
		`{"characteristics": truncated`,
	} {
		g := New(&fakeCompleter{reply: reply}, nil)
		_, err := g.Generate(context.Background(), sampleAnswers())
		if !errors.Is(err, domain.ErrInsightMalformed) {
			t.Fatalf("reply %q: expected ErrInsightMalformed, got %v", reply, err)
		}
	}
}

func TestGenerate_EmptyQuery(t *testing.T) {
	g := New(&fakeCompleter{reply: `{"characteristics":"x","ideal_scent":"y","persona":"z","query":""}`}, nil)
	_, err := g.Generate(context.Background(), sampleAnswers())
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestGenerate_ServiceFailure(t *testing.T) {
	g := New(&fakeCompleter{err: errors.New("connection refused")}, nil)
	if _, err := g.Generate(context.Background(), sampleAnswers()); err == nil {
		t.Fatal("expected error from failing completer")
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(sampleAnswers())

	for _, want := range []string{
		"Ayu", "1 Longevity preference: all day", "10 Time of day: night",
		`"characteristics"`, `"ideal_scent"`, `"persona"`, `"query"`,
		"max 225 characters", "max 300 characters",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"{\"a\":1}", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"```json{\"a\":1}```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripFence(tt.in); got != tt.want {
			t.Errorf("stripFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
