package exam

import "context"

type ListOpts struct {
	Year   int    // 0 = any
	Slot   string // "" = any
	Limit  int
	Offset int
}

type AttemptListOpts struct {
	QuestionSetID string
	UserID        string
	Status        string // open|scored, "" = any
	Limit         int
	Offset        int
}

// Store persists question sets and attempts. Question sets are
// append-only: PutQuestionSet is the only write and fails with
// ErrConflict when (year, slot) is taken. Attempt writes go through
// UpdateAttempt, which honours the attempt's Version field so that
// concurrent writers cannot clobber each other.
type Store interface {
	PutQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error)
	GetQuestionSet(ctx context.Context, key SetKey) (QuestionSet, error)
	GetQuestionSetByID(ctx context.Context, id string) (QuestionSet, error)
	ListQuestionSets(ctx context.Context, opts ListOpts) ([]QuestionSetSummary, error)

	CreateAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	// FindOpenAttempt returns the candidate's open attempt against a set,
	// or ErrNotFound when there is none.
	FindOpenAttempt(ctx context.Context, userID, questionSetID string) (Attempt, error)
	// UpdateAttempt applies a guarded write: the row must still be open
	// and at a.Version. On a lost race it reports ErrInvalidState when the
	// attempt has been scored meanwhile, ErrConflict otherwise. The
	// returned attempt carries the bumped version.
	UpdateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
}
