// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{RuleParseErrorId, false, "Invalid pack rules"},
		{InvalidProjectId, false, "Invalid project description"},
		{OutputDirSetupFailedId, false, "output directory"},
		{BaseDirUnreadableId, false, "cannot be read"},
		{EntryWriteFailedId, false, "could not be added"},
		{ArchiveWriteFailedId, false, "Could not write the archive"},
		{ArtifactRegistrationFailedId, false, "could not be registered"},
		{Id(9999), true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if issue.Id() != tt.id {
				t.Errorf("Get(%d).Id() = %d", tt.id, issue.Id())
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain %q", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	issues := Values()
	if len(issues) != 8 {
		t.Fatalf("Values() returned %d issues, want 8", len(issues))
	}

	seen := make(map[Id]bool)
	for _, issue := range issues {
		if issue == nil {
			t.Fatal("Values() contains nil issue")
		}
		if seen[issue.Id()] {
			t.Errorf("duplicate issue id %d", issue.Id())
		}
		seen[issue.Id()] = true
	}
}

func TestIssue_DocLinksIsClone(t *testing.T) {
	i := &Issue{id: Id(100), docLinks: []HttpLink{"https://example.com/a"}}

	links := i.DocLinks()
	links[0] = "modified"

	if got := i.DocLinks()[0]; got != "https://example.com/a" {
		t.Errorf("DocLinks() should return a clone, original now %q", got)
	}
}

func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	var gotStyle string
	render = func(in, stylePath string) (string, error) {
		gotStyle = stylePath
		return in, nil
	}

	i := &Issue{id: Id(100), mdMsg: "# Title", docLinks: []HttpLink{"https://example.com/docs"}}
	rendered, err := i.Render("dark")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if gotStyle != "dark" {
		t.Errorf("render style = %q, want dark", gotStyle)
	}
	if !strings.Contains(rendered, "# Title") {
		t.Error("Render() output should contain the message")
	}
	if !strings.Contains(rendered, "- https://example.com/docs") {
		t.Error("Render() output should list doc links")
	}
}

func TestIssue_RenderCatalog(t *testing.T) {
	for _, issue := range Values() {
		rendered, err := issue.Render("notty")
		if err != nil {
			t.Errorf("Render(notty) of issue %d: %v", issue.Id(), err)
			continue
		}
		if strings.TrimSpace(rendered) == "" {
			t.Errorf("Render(notty) of issue %d is empty", issue.Id())
		}
	}
}
