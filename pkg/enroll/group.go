package enroll

import (
	"context"
)

// MemberResult is the outcome for one group member.
type MemberResult struct {
	UPN    string
	Record *Record
	Err    error
}

// Tally summarizes a group enrollment run.
type Tally struct {
	Succeeded int
	Failed    int
	Results   []MemberResult
}

// EnrollGroup runs the full enrollment sequence once per member, strictly
// sequentially: every member needs their own physical key inserted. A
// failure for one member is recorded and the loop moves on; only context
// cancellation stops the run early.
func (o *Orchestrator) EnrollGroup(ctx context.Context, members []string) *Tally {
	tally := &Tally{}
	for _, upn := range members {
		if ctx.Err() != nil {
			break
		}
		rec, err := o.Enroll(ctx, upn)
		if err != nil {
			o.log.WithField("upn", upn).WithError(err).Error("member enrollment failed, continuing")
			tally.Failed++
			tally.Results = append(tally.Results, MemberResult{UPN: upn, Err: err})
			continue
		}
		tally.Succeeded++
		tally.Results = append(tally.Results, MemberResult{UPN: upn, Record: rec})
	}
	return tally
}
