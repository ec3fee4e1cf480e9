package jobs

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/corebank-dev/corebatch/internal/model"
	"github.com/corebank-dev/corebatch/internal/posting"
)

// PostInterestName is the scheduler name of the interest posting job.
const PostInterestName = "post-interest"

// PostInterestJob posts one day of interest to every active savings account.
type PostInterestJob struct {
	poster *posting.Poster
	amount posting.AmountFunc
}

// NewPostInterestJob creates the interest job accruing simple daily interest at annualRate.
func NewPostInterestJob(poster *posting.Poster, annualRate decimal.Decimal) *PostInterestJob {
	return &PostInterestJob{poster: poster, amount: posting.SimpleDailyInterest(annualRate)}
}

func (j *PostInterestJob) Name() string { return PostInterestName }

// Filter selects active accounts that have not escheated. The poster re-checks eligibility
// under the account lock, so a stale page only costs a rejected item.
func (j *PostInterestJob) Filter(rc model.RunContext) model.Filter {
	return model.Filter{
		TenantID:         rc.TenantID,
		Status:           model.StatusActive,
		ExcludeSubStatus: model.SubStatusEscheat,
	}
}

func (j *PostInterestJob) Process(ctx context.Context, rc model.RunContext, a model.Account) error {
	_, err := j.poster.PostWith(ctx, rc, a.ID, j.amount)
	return err
}
