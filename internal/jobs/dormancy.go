package jobs

import (
	"context"

	"github.com/corebank-dev/corebatch/internal/lifecycle"
	"github.com/corebank-dev/corebatch/internal/model"
)

// UpdateDormancyName is the scheduler name of the dormancy job.
const UpdateDormancyName = "update-dormancy"

// DormancyJob moves idle accounts along INACTIVE, DORMANT and ESCHEAT.
type DormancyJob struct {
	service *lifecycle.Service
	policy  lifecycle.Policy
}

// NewDormancyJob creates the dormancy job.
func NewDormancyJob(service *lifecycle.Service, policy lifecycle.Policy) *DormancyJob {
	return &DormancyJob{service: service, policy: policy}
}

func (j *DormancyJob) Name() string { return UpdateDormancyName }

// Enabled is false when no product tracks dormancy.
func (j *DormancyJob) Enabled() bool {
	_, ok := j.policy.MinInactiveDays()
	return ok
}

// Filter selects active, non-escheated accounts idle past the shortest inactive threshold.
func (j *DormancyJob) Filter(rc model.RunContext) model.Filter {
	f := model.Filter{
		TenantID:         rc.TenantID,
		Status:           model.StatusActive,
		ExcludeSubStatus: model.SubStatusEscheat,
	}
	if days, ok := j.policy.MinInactiveDays(); ok {
		f.InactiveOnOrBefore = lifecycle.Cutoff(rc.AsOfDate, days)
	}
	return f
}

func (j *DormancyJob) Process(ctx context.Context, rc model.RunContext, a model.Account) error {
	_, err := j.service.Apply(ctx, rc, a.ID)
	return err
}
