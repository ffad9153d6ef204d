package git

import (
	"strings"
	"testing"
)

func TestCommitMessage_String(t *testing.T) {
	tests := []struct {
		name string
		msg  CommitMessage
		want string
	}{
		{
			name: "subject only",
			msg:  CommitMessage{Subject: "feat: add login"},
			want: "feat: add login",
		},
		{
			name: "body keeps list items",
			msg:  CommitMessage{Subject: "feat: apply", Body: "Applied:\n- a.dart\n- b.dart\n"},
			want: "feat: apply\n\nApplied:\n- a.dart\n- b.dart",
		},
		{
			name: "feature trailers",
			msg: CommitMessage{
				Subject:  "feat: apply login",
				Trailers: append(FeatureTrailers("login", "20240102-150405-abc123"), CoAuthor("Pat <pat@example.com>")),
			},
			want: "feat: apply login\n\nFeature: login\nRun: 20240102-150405-abc123\nGenerated-By: genstage\nCo-authored-by: Pat <pat@example.com>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.String(); got != tt.want {
				t.Errorf("String() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestFeatureTrailers_OmitsEmpty(t *testing.T) {
	got := FeatureTrailers("", "")
	if len(got) != 1 || got[0] != GeneratedByTrailer {
		t.Errorf("FeatureTrailers() = %v, want only Generated-By", got)
	}
}

func TestCommitMessage_BodyWrap(t *testing.T) {
	long := "- " + strings.Repeat("x", 90)
	msg := CommitMessage{Subject: "docs: wrap", Body: strings.Repeat("word ", 40) + "\n" + long}

	lines := strings.Split(msg.String(), "\n")
	for _, line := range lines {
		if len(line) > 72 && line != long {
			t.Errorf("line longer than 72: %q", line)
		}
	}
	if lines[len(lines)-1] != long {
		t.Errorf("list item was rewrapped: %q", lines[len(lines)-1])
	}
}

func TestCommitMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     CommitMessage
		wantErr bool
	}{
		{"valid", CommitMessage{Subject: "ok"}, false},
		{"missing subject", CommitMessage{Body: "x"}, true},
		{"blank subject", CommitMessage{Subject: "   "}, true},
		{"multi-line subject", CommitMessage{Subject: "a\nb"}, true},
		{"too long", CommitMessage{Subject: strings.Repeat("x", MaxSubjectLength+1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppendTrailers(t *testing.T) {
	tests := []struct {
		name    string
		message string
		authors []string
		want    string
	}{
		{"none", "feat: a", nil, "feat: a"},
		{"subject only", "feat: a", []string{"Pat <p@x>"}, "feat: a\n\nCo-authored-by: Pat <p@x>"},
		{
			"extends trailer block",
			"feat: a\n\nGenerated-By: genstage\n",
			[]string{"Pat <p@x>"},
			"feat: a\n\nGenerated-By: genstage\nCo-authored-by: Pat <p@x>",
		},
		{"already present", "feat: a\n\nCo-authored-by: Pat <p@x>", []string{"Pat <p@x>"}, "feat: a\n\nCo-authored-by: Pat <p@x>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := appendTrailers(tt.message, tt.authors); got != tt.want {
				t.Errorf("appendTrailers() = %q, want %q", got, tt.want)
			}
		})
	}
}
