package pipeline

// Status identifies the pipeline stage a job is in. Status is the single
// authority for gating decisions; CurrentStep on the job record is a display
// label derived from it and always written in the same update.
type Status string

const (
	StatusQueued        Status = "queued"
	StatusResearch      Status = "research"
	StatusWriting       Status = "writing"
	StatusReview        Status = "review"
	StatusHumanReview   Status = "human_review"
	StatusOnHold        Status = "on_hold"
	StatusCreating      Status = "creating"
	StatusCreateFile    Status = "createFile"
	StatusValidating    Status = "validating"
	StatusPendingDeploy Status = "pending_deploy"
	StatusDeploying     Status = "deploying"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// Terminal reports whether no further transitions are accepted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known pipeline status.
func (s Status) Valid() bool {
	_, ok := stepLabels[s]
	return ok
}

// stepLabels maps each status to the display label stored in CurrentStep.
var stepLabels = map[Status]string{
	StatusQueued:        "queued",
	StatusResearch:      "research",
	StatusWriting:       "writing",
	StatusReview:        "review",
	StatusHumanReview:   "human_review",
	StatusOnHold:        "human_review",
	StatusCreating:      "creating",
	StatusCreateFile:    "createFile",
	StatusValidating:    "validating",
	StatusPendingDeploy: "deploy",
	StatusDeploying:     "deploy",
	StatusCompleted:     "completed",
	StatusFailed:        "failed",
}

// StepLabel returns the display label for a status.
func StepLabel(s Status) string {
	return stepLabels[s]
}

// progressPercent maps each status to the overall completion percentage
// reported to clients while the job sits in that status.
var progressPercent = map[Status]int{
	StatusQueued:        0,
	StatusResearch:      10,
	StatusWriting:       30,
	StatusReview:        50,
	StatusHumanReview:   60,
	StatusOnHold:        60,
	StatusCreating:      70,
	StatusCreateFile:    80,
	StatusValidating:    85,
	StatusPendingDeploy: 90,
	StatusDeploying:     95,
	StatusCompleted:     100,
}

// ProgressFor returns the completion percentage for a status. Failed jobs
// keep whatever progress they had, so failed has no entry here.
func ProgressFor(s Status) (int, bool) {
	p, ok := progressPercent[s]
	return p, ok
}

// Category restricts what kind of post a job produces.
type Category string

const (
	CategoryTech Category = "tech"
	CategoryLife Category = "life"
)

func (c Category) Valid() bool {
	return c == CategoryTech || c == CategoryLife
}

// Progress entry statuses within a single step.
const (
	EntryStarted   = "started"
	EntryProgress  = "progress"
	EntryCompleted = "completed"
	EntryFailed    = "failed"
)
