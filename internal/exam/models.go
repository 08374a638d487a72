package exam

// SetSize is the fixed length of a complete question paper.
const SetSize = 90

type QuestionType string

const (
	TypeMCQ     QuestionType = "MCQ"
	TypeInteger QuestionType = "Integer"
)

type Subject string

const (
	SubjectMathematics Subject = "Mathematics"
	SubjectPhysics     Subject = "Physics"
	SubjectChemistry   Subject = "Chemistry"
)

// Question is the authoritative form of a single paper entry, answer key
// included. It never leaves the server in this shape; candidate-facing
// payloads go through View.
type Question struct {
	ID      int          `json:"question_id"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"` // exactly 4 for MCQ, empty for Integer
	Answer  int          `json:"answer"`            // option index 0-3 for MCQ, the value itself for Integer
	Subject Subject      `json:"subject"`
	Image   string       `json:"image"`
}

// QuestionView is the same question without the answer key.
type QuestionView struct {
	ID      int          `json:"question_id"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	Subject Subject      `json:"subject"`
	Image   string       `json:"image"`
}

func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, Type: q.Type, Options: q.Options, Subject: q.Subject, Image: q.Image}
}

// SetKey identifies one paper: a year plus a slot label like "Jan 27 Shift 1".
type SetKey struct {
	Year int    `json:"year"`
	Slot string `json:"slot"`
}

// QuestionSet is an immutable 90-question paper. Once stored it is never
// mutated; attempts hold a read-only reference to it.
type QuestionSet struct {
	ID        string     `json:"id"`
	Year      int        `json:"year"`
	Slot      string     `json:"slot"`
	Questions []Question `json:"questions"`
	CreatedAt int64      `json:"created_at"`
}

// QuestionSetSummary is the listing shape: no question bodies.
type QuestionSetSummary struct {
	ID            string `json:"id"`
	Year          int    `json:"year"`
	Slot          string `json:"slot"`
	QuestionCount int    `json:"question_count"`
	CreatedAt     int64  `json:"created_at"`
}

// Response is one slot of a candidate's answer sheet. A nil Answer means
// the question was left blank.
type Response struct {
	QuestionID int  `json:"question_id"`
	Answer     *int `json:"answer"`
}

// Attempt statuses. The only legal transition is open -> scored.
const (
	StatusOpen   = "open"
	StatusScored = "scored"
)

// SubjectRange marks a contiguous block of questions, [Start, End) in
// paper order, belonging to one subject.
type SubjectRange struct {
	Subject Subject `json:"subject"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
}

// Attempt is one candidate's run through one question set. Responses are
// replaced wholesale on every save; Score and CompletedAt are set exactly
// once, on submission. Version backs the store's optimistic write guard.
type Attempt struct {
	ID                string         `json:"id"`
	QuestionSetID     string         `json:"question_set_id"`
	UserID            string         `json:"user_id"`
	Status            string         `json:"status"`
	Responses         []Response     `json:"responses"`
	SubjectBoundaries []SubjectRange `json:"subject_boundaries"`
	Score             *int           `json:"score,omitempty"`
	Version           int            `json:"version"`
	StartedAt         int64          `json:"started_at"`
	CompletedAt       *int64         `json:"completed_at,omitempty"`
}
