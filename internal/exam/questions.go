package exam

import "context"

type FilterOpts struct {
	Subjects []Subject
	Years    []int
	Types    []QuestionType
	Limit    int
	Offset   int
}

// FilterQuestions flattens the stored papers into a single question
// stream filtered by subject, year and type, for practice browsing.
// Answer keys are stripped, as everywhere outside the scoring path.
func (s *Service) FilterQuestions(ctx context.Context, opts FilterOpts) ([]QuestionView, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	sums, err := s.store.ListQuestionSets(ctx, ListOpts{})
	if err != nil {
		return nil, err
	}
	skip := opts.Offset
	out := []QuestionView{}
	for _, sum := range sums {
		if len(opts.Years) > 0 && !containsInt(opts.Years, sum.Year) {
			continue
		}
		qs, err := s.store.GetQuestionSetByID(ctx, sum.ID)
		if err != nil {
			return nil, err
		}
		for _, q := range qs.Questions {
			if len(opts.Subjects) > 0 && !containsSubject(opts.Subjects, q.Subject) {
				continue
			}
			if len(opts.Types) > 0 && !containsType(opts.Types, q.Type) {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			out = append(out, q.View())
			if len(out) == opts.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsSubject(xs []Subject, v Subject) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsType(xs []QuestionType, v QuestionType) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
