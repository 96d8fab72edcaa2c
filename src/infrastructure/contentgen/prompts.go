package contentgen

const (
	ResearchSystemTmpl = `
You are a meticulous research assistant for a {{.Category}} blog. You gather accurate,
current background material a writer can turn into a post.
`
	ResearchPromptTmpl = `
Collect background material for a blog post on the following topic. Summarize the key
concepts, notable facts, common pitfalls and points of disagreement. Structure the notes
as markdown with short sections. Output only the research notes.

Topic: {{.Topic}}
`
	DraftSystemTmpl = `
You are an experienced {{.Category}} blog author. You write clear, engaging posts in
markdown, grounded strictly in the research notes you are given.
`
	DraftPromptTmpl = `
Write a complete blog post in markdown on the topic below, using the research notes.
Start with a single H1 title, use H2 sections, and close with a short conclusion.
Write in the language of the topic.
{{if .Tone}}Tone: {{.Tone}}.{{end}}
{{if .TargetReader}}Target reader: {{.TargetReader}}.{{end}}
{{if .Template}}Follow this structural template:
{{.Template}}
{{end}}
Topic: {{.Topic}}

Research notes:
<RESEARCH>
{{.Research}}
</RESEARCH>

Output only the post.
`
	RewritePromptTmpl = `
Revise the blog post below according to the reviewer feedback. Keep what the feedback
does not object to, and keep the post in markdown with the same overall structure.
{{if .Tone}}Tone: {{.Tone}}.{{end}}
{{if .TargetReader}}Target reader: {{.TargetReader}}.{{end}}

Reviewer feedback:
<FEEDBACK>
{{.Feedback}}
</FEEDBACK>

Current draft:
<DRAFT>
{{.Draft}}
</DRAFT>

Research notes:
<RESEARCH>
{{.Research}}
</RESEARCH>

Output only the revised post.
`
	ReviewSystemTmpl = `
You are a demanding blog editor. You review drafts for factual soundness, structure,
clarity and reader value, and give concrete, actionable suggestions.
`
	ReviewPromptTmpl = `
Review the following blog post draft. List specific, constructive suggestions covering
(i) accuracy, (ii) structure and flow, (iii) clarity and tone, and (iv) completeness.
Each suggestion should address one specific part of the draft.
Output only the suggestions.

<DRAFT>
{{.Draft}}
</DRAFT>
`
	ReviewChunkPromptTmpl = `
Review the following section of a longer blog post draft. List specific, constructive
suggestions covering accuracy, clarity and completeness of this section only.
Output only the suggestions.

<SECTION>
{{.Chunk}}
</SECTION>
`
	RefineSystemTmpl = `
You are a careful blog editor. You apply review suggestions to a draft without
changing its voice or introducing new claims.
`
	RefinePromptTmpl = `
Edit the blog post draft below, taking into account the review suggestions. Apply the
suggestions you judge correct and leave the rest of the text unchanged. Keep the post
in markdown.

<DRAFT>
{{.Draft}}
</DRAFT>

<SUGGESTIONS>
{{.Review}}
</SUGGESTIONS>

Output only the edited post.
`
	MetadataSystemTmpl = `
You are a blog metadata assistant. You reply with strict JSON and nothing else.
`
	MetadataPromptTmpl = `
Produce front-matter metadata for the blog post below as a JSON object with exactly
these keys: "title" (string), "description" (string, at most 160 characters),
"tags" (array of 3 to 6 short strings). Use the language of the post.

Topic: {{.Topic}}

<POST>
{{.Draft}}
</POST>
`
	SuggestTopicSystemTmpl = `
You are an editorial planner for a {{.Category}} blog. You propose one fresh post topic
at a time.
`
	SuggestTopicPromptTmpl = `
Suggest one new blog post topic for the {{.Category}} category. It must not repeat or
closely resemble any of these recent topics:
{{range .Recent}}- {{.}}
{{end}}
Output only the topic as a single line of plain text.
`
)
