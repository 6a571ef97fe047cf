// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Id identifies an entry in the issue catalog.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	RuleParseErrorId
	InvalidProjectId
	OutputDirSetupFailedId
	BaseDirUnreadableId
	EntryWriteFailedId
	ArchiveWriteFailedId
	ArtifactRegistrationFailedId
)

type (
	// MarkdownMsg is Markdown text rendered for the user.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a catalog entry: a Markdown guide for one failure class.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the issue with the given glamour style ("dark", "light", "notty"...).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- " + string(link) + "\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The slnpack configuration file could not be read or does not match the schema.

## Things you can try:
- Check the file for CUE syntax errors
- Show the effective configuration:
~~~
$ slnpack config show
~~~
- Regenerate a default file:
~~~
$ slnpack config init
~~~`,
	}

	ruleParseErrorIssue = &Issue{
		id: RuleParseErrorId,
		mdMsg: `
# Invalid pack rules!

The ` + "`dotnet.pack.files`" + ` property could not be parsed. Every rule needs a
non-empty ` + "`files=`" + ` pattern followed by a non-empty ` + "`to-dir=`" + ` target.
Values end at the next space; spaces cannot be escaped.

## Example:
~~~cue
project: properties: "dotnet.pack.files": """
	files=bin/Release/*.dll to-dir=lib
	files=docs/*.md to-dir=docs files=LICENSE to-dir=.
	"""
~~~

## Things you can try:
- List the rules as slnpack reads them:
~~~
$ slnpack rules
~~~`,
	}

	invalidProjectIssue = &Issue{
		id: InvalidProjectId,
		mdMsg: `
# Invalid project description!

The artifact id and version name the archive (` + "`<artifactId>-<version>.sln`" + `).
Both must be set and must not contain path separators.

## Things you can try:
- Set them in slnpack.cue:
~~~cue
project: {
	artifact_id: "MyApp"
	version:     "1.2.0"
}
~~~
- Or pass them on the command line:
~~~
$ slnpack pack --artifact-id MyApp --artifact-version 1.2.0
~~~`,
	}

	outputDirSetupFailedIssue = &Issue{
		id: OutputDirSetupFailedId,
		mdMsg: `
# Could not prepare the output directory!

slnpack empties (or creates) the output directory before packing.

## Things you can try:
- Check that the directory is writable and no file is locked by another process
- Make sure the path is not an existing regular file
- Choose another location with ` + "`--output-dir`",
	}

	baseDirUnreadableIssue = &Issue{
		id: BaseDirUnreadableId,
		mdMsg: `
# A rule points at a directory that cannot be read!

Each rule is resolved to the directory before its first ` + "`*`" + `. That
directory must exist and be readable.

## Things you can try:
- Check the rule's path relative to the project base directory
- Preview how every rule resolves:
~~~
$ slnpack rules --resolve
~~~`,
	}

	entryWriteFailedIssue = &Issue{
		id: EntryWriteFailedId,
		mdMsg: `
# Some files could not be added to the archive!

The rule's walk finished but at least one matched file was unreadable or
mapped to an unsafe archive path. Packing stopped after that rule.

## Things you can try:
- Check permissions of the files listed above
- Avoid ` + "`to-dir=..`" + ` targets that escape the archive root`,
	}

	archiveWriteFailedIssue = &Issue{
		id: ArchiveWriteFailedId,
		mdMsg: `
# Could not write the archive!

The zip file could not be finalized. No partial archive was left behind.

## Things you can try:
- Check free disk space in the output directory
- Make sure source files are not removed while packing`,
	}

	artifactRegistrationFailedIssue = &Issue{
		id: ArtifactRegistrationFailedId,
		mdMsg: `
# The archive was built but could not be registered!

## Things you can try:
- For the S3 registry, check endpoint, bucket and credentials
  (` + "`SLNPACK_REGISTRY_S3_ACCESS_KEY`" + `, ` + "`SLNPACK_REGISTRY_S3_SECRET_KEY`" + `)
- Skip registration with ` + "`--registry none`",
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():           configLoadFailedIssue,
		ruleParseErrorIssue.Id():             ruleParseErrorIssue,
		invalidProjectIssue.Id():             invalidProjectIssue,
		outputDirSetupFailedIssue.Id():       outputDirSetupFailedIssue,
		baseDirUnreadableIssue.Id():          baseDirUnreadableIssue,
		entryWriteFailedIssue.Id():           entryWriteFailedIssue,
		archiveWriteFailedIssue.Id():         archiveWriteFailedIssue,
		artifactRegistrationFailedIssue.Id(): artifactRegistrationFailedIssue,
	}
)

// Values returns every catalog entry, in no particular order.
func Values() []*Issue {
	return maps.Values(issues)
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
