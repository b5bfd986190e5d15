package prstack

import "testing"

func TestTrunkSet_IsStacked(t *testing.T) {
	trunks := NewTrunkSet()
	tests := []struct {
		base string
		want bool
	}{
		{base: "main", want: false},
		{base: "Main", want: false},
		{base: "MASTER", want: false},
		{base: "develop", want: false},
		{base: "DeV", want: false},
		{base: "feature/login", want: true},
		{base: "main2", want: true},
		{base: "", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			if got := trunks.IsStacked(tt.base); got != tt.want {
				t.Errorf("IsStacked(%q) = %v, want %v", tt.base, got, tt.want)
			}
		})
	}
}

func TestNewTrunkSet_Custom(t *testing.T) {
	trunks := NewTrunkSet(" Trunk ", "", "RELEASE")
	if len(trunks) != 2 {
		t.Fatalf("len = %d, want 2", len(trunks))
	}
	if !trunks.Has("trunk") || !trunks.Has("release") {
		t.Errorf("expected trunk and release, got %v", trunks)
	}
	if trunks.Has("main") {
		t.Error("custom set must not include defaults")
	}
}

func TestTrunkSet_Classify(t *testing.T) {
	ctx := NewTrunkSet().Classify("owner", "repo", "A", "B")
	if !ctx.IsStackedPR {
		t.Error("expected stacked PR")
	}
	if ctx.BranchChain != nil {
		t.Error("classification must not carry a chain")
	}
	if ctx.Repo() != (Repo{Owner: "owner", Name: "repo"}) {
		t.Errorf("Repo() = %v", ctx.Repo())
	}

	std := NewTrunkSet().Classify("owner", "repo", "main", "feature")
	if std.IsStackedPR {
		t.Error("expected standard PR")
	}
}

func TestParseRepo(t *testing.T) {
	tests := []struct {
		in      string
		want    Repo
		wantErr bool
	}{
		{in: "owner/repo", want: Repo{Owner: "owner", Name: "repo"}},
		{in: "/owner/repo.git/", want: Repo{Owner: "owner", Name: "repo"}},
		{in: "owner", wantErr: true},
		{in: "owner/", wantErr: true},
		{in: "a/b/c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepo(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRepo(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRepo(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
