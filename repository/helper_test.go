package repository

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func Test_updatedRefs(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			"single-branch",
			`remote: Enumerating objects: 7, done.
remote: Counting objects: 100% (7/7), done.
Unpacking objects: 100% (4/4), 344 bytes | 172.00 KiB/s, done.
  da39a3ee5e6b4b0d3255bfef95601890afd80709 f109e33263250f9212b1ac6a2a96215c270a0232 refs/heads/branch1`,
			[]string{"refs/heads/branch1"},
		}, {
			"all-flags",
			`+ 79d6188de4447cb7cb204c6c610c8814b64460f8 90e42330a387dd7fba63d1c6ed02c965d8d10bd7 refs/heads/forced
= 1643d7874890dca5982facfba9c4f24da53876e9 5cbac6e18ac6079300f7d64bc9f38c5cd377f2aa refs/heads/main
- 1643d7874890dca5982facfba9c4f24da53876e9 3da541559918a808c2402bba5012f6c60b27661c refs/heads/deleted
* 1925b0b80b618dce7303cc3e7059da5032474967 180467973d800a01fece8e469dc40db11a1df206 refs/tags/v1.0.0
t 1643d7874890dca5982facfba9c4f24da53876e9 4c286e182bc4d1832a8739b18c19ecaf9262c37a refs/tags/v0.1.0`,
			[]string{
				"refs/heads/forced",
				"refs/heads/deleted",
				"refs/tags/v1.0.0",
				"refs/tags/v0.1.0",
			},
		}, {
			"nothing",
			``,
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := updatedRefs(tt.output)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("updatedRefs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_changedRefs(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			"up-to-date",
			"To file:///tmp/target.git\n=\trefs/heads/main:refs/heads/main\t[up to date]\nDone",
			nil,
		}, {
			"forced-and-new",
			"To https://gitlab.com/g/p.git\n+\trefs/heads/main:refs/heads/main\t0f3c2a1...9d8e7f6 (forced update)\n*\trefs/heads/feature-x:refs/heads/feature-x\t[new branch]\nDone",
			[]string{"refs/heads/main", "refs/heads/feature-x"},
		}, {
			"fast-forward",
			"To file:///tmp/target.git\n \trefs/heads/main:refs/heads/master\t0f3c2a1..9d8e7f6\nDone",
			[]string{"refs/heads/master"},
		}, {
			"tags",
			"To file:///tmp/target.git\n*\trefs/tags/v1:refs/tags/v1\t[new tag]\n=\trefs/tags/v0:refs/tags/v0\t[up to date]\nDone",
			[]string{"refs/tags/v1"},
		}, {
			"delete",
			"To file:///tmp/target.git\n-\t:refs/heads/old\t[deleted]\nDone",
			[]string{"refs/heads/old"},
		}, {
			"everything-up-to-date",
			"Everything up-to-date",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := changedRefs(tt.output)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("changedRefs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_parseSymref(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
		wantOK bool
	}{
		{"main", "ref: refs/heads/main\tHEAD\n0f3c2a1d9d8e7f60f3c2a1d9d8e7f60f3c2a1d9d\tHEAD", "refs/heads/main", true},
		{"master", "ref: refs/heads/master\tHEAD", "refs/heads/master", true},
		{"slash-branch", "ref: refs/heads/release/v1\tHEAD", "refs/heads/release/v1", true},
		{"no-symref", "0f3c2a1d9d8e7f60f3c2a1d9d8e7f60f3c2a1d9d\tHEAD", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseSymref(tt.output)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseSymref() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func Test_parseHeads(t *testing.T) {
	output := `0f3c2a1d9d8e7f60f3c2a1d9d8e7f60f3c2a1d9d	refs/heads/feat-a
9d8e7f60f3c2a1d9d8e7f60f3c2a1d9d8e7f60f3	refs/heads/feat/b
1111111111111111111111111111111111111111	refs/heads/main`

	want := []string{"feat-a", "feat/b", "main"}
	if diff := cmp.Diff(want, parseHeads(output)); diff != "" {
		t.Errorf("parseHeads() mismatch (-want +got):\n%s", diff)
	}

	if got := parseHeads(""); got != nil {
		t.Errorf("parseHeads() = %v, want nil", got)
	}
}
