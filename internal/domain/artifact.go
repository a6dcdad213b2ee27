package domain

import "time"

// ArtifactStatus tracks an artifact through human review.
type ArtifactStatus string

const (
	ArtifactPending  ArtifactStatus = "pending"
	ArtifactApproved ArtifactStatus = "approved"
	ArtifactRejected ArtifactStatus = "rejected"
)

// RecommendedPath is the scoping agent's fast/slow-path recommendation.
type RecommendedPath string

const (
	PathQuick RecommendedPath = "quick"
	PathFull  RecommendedPath = "full"
)

// ScopeCard is the artifact produced at the end of the scoping stage.
type ScopeCard struct {
	ID              string          `json:"id"`
	WorkflowID      string          `json:"workflow_id"`
	Summary         string          `json:"summary"`
	RecommendedPath RecommendedPath `json:"recommended_path"`
	Status          ArtifactStatus  `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ResearchCard is the artifact produced at the end of the researching stage.
type ResearchCard struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	Findings   string         `json:"findings"`
	Status     ArtifactStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}

// PulseDescriptor is one planned, ordered code-change unit.
type PulseDescriptor struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	ExpectedChanges []string `json:"expected_changes,omitempty"`
	EstimatedSize   string   `json:"estimated_size,omitempty"`
	DependsOn       []string `json:"depends_on,omitempty"`
	PlannedIndex    int      `json:"planned_index"`
}

// Plan is the artifact produced at the end of the planning stage.
type Plan struct {
	ID         string            `json:"id"`
	WorkflowID string            `json:"workflow_id"`
	Pulses     []PulseDescriptor `json:"pulses"`
	Status     ArtifactStatus    `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ReviewRecommendation is the review agent's verdict.
type ReviewRecommendation string

const (
	RecommendApprove      ReviewRecommendation = "approve"
	RecommendDeny         ReviewRecommendation = "deny"
	RecommendManualReview ReviewRecommendation = "manual_review"
)

// ReviewCommentTarget identifies what a ReviewComment refers to.
type ReviewCommentTarget string

const (
	CommentLine   ReviewCommentTarget = "line"
	CommentFile   ReviewCommentTarget = "file"
	CommentReview ReviewCommentTarget = "review"
)

// ReviewCommentSeverity is the agent-assigned severity of a line/file
// comment; nil/empty for user comments.
type ReviewCommentSeverity string

const (
	SeverityHigh   ReviewCommentSeverity = "High"
	SeverityMedium ReviewCommentSeverity = "Medium"
	SeverityLow    ReviewCommentSeverity = "Low"
)

// ReviewCommentAuthor distinguishes agent- from user-authored comments.
type ReviewCommentAuthor string

const (
	AuthorAgent ReviewCommentAuthor = "agent"
	AuthorUser  ReviewCommentAuthor = "user"
)

// ReviewComment is a single comment attached to a ReviewCard.
type ReviewComment struct {
	ID           string                `json:"id"`
	ReviewCardID string                `json:"review_card_id"`
	Target       ReviewCommentTarget   `json:"target"`
	FilePath     string                `json:"file_path,omitempty"`
	StartLine    int                   `json:"start_line,omitempty"`
	EndLine      int                   `json:"end_line,omitempty"`
	Body         string                `json:"body"`
	Severity     ReviewCommentSeverity `json:"severity,omitempty"`
	Author       ReviewCommentAuthor   `json:"author"`
	CreatedAt    time.Time             `json:"created_at"`
}

// ReviewCard is the artifact produced at the end of the review stage.
type ReviewCard struct {
	ID                     string                `json:"id"`
	WorkflowID             string                `json:"workflow_id"`
	Comments               []ReviewComment       `json:"comments,omitempty"`
	Recommendation         ReviewRecommendation  `json:"recommendation,omitempty"`
	SuggestedCommitMessage string                `json:"suggested_commit_message,omitempty"`
	DiffContent            string                `json:"diff_content,omitempty"`
	Status                 ArtifactStatus        `json:"status"`
	CreatedAt              time.Time             `json:"created_at"`
}
