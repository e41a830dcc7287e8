package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDeployment() Deployment {
	return Deployment{
		Name:       "default",
		Entrypoint: "scale.py:scale_flow",
		WorkPool: &WorkPool{
			Name:          "nicholas-managed-staging",
			WorkQueueName: "default",
		},
	}
}

func TestValidateDeployment(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Deployment)
		wantErr error
	}{
		{
			name:   "valid entry",
			mutate: func(d *Deployment) {},
		},
		{
			name:   "no work pool is allowed",
			mutate: func(d *Deployment) { d.WorkPool = nil },
		},
		{
			name:    "empty entrypoint",
			mutate:  func(d *Deployment) { d.Entrypoint = "" },
			wantErr: ErrInvalidEntrypoint,
		},
		{
			name:    "entrypoint without callable",
			mutate:  func(d *Deployment) { d.Entrypoint = "scale.py:" },
			wantErr: ErrInvalidEntrypoint,
		},
		{
			name:    "entrypoint without path",
			mutate:  func(d *Deployment) { d.Entrypoint = ":scale_flow" },
			wantErr: ErrInvalidEntrypoint,
		},
		{
			name:    "entrypoint without separator",
			mutate:  func(d *Deployment) { d.Entrypoint = "scale.py" },
			wantErr: ErrInvalidEntrypoint,
		},
		{
			name:    "callable is not an identifier",
			mutate:  func(d *Deployment) { d.Entrypoint = "scale.py:123abc" },
			wantErr: ErrInvalidEntrypoint,
		},
		{
			name:    "missing work pool name",
			mutate:  func(d *Deployment) { d.WorkPool.Name = "" },
			wantErr: ErrMissingWorkPoolName,
		},
		{
			name:    "missing work queue name",
			mutate:  func(d *Deployment) { d.WorkPool.WorkQueueName = "" },
			wantErr: ErrMissingWorkQueue,
		},
		{
			name:    "schedule with no kind",
			mutate:  func(d *Deployment) { d.Schedules = []Schedule{{Timezone: "UTC"}} },
			wantErr: ErrInvalidSchedule,
		},
		{
			name: "schedule with two kinds",
			mutate: func(d *Deployment) {
				d.Schedules = []Schedule{{Cron: "0 * * * *", Interval: 60}}
			},
			wantErr: ErrInvalidSchedule,
		},
		{
			name: "cron schedule is valid",
			mutate: func(d *Deployment) {
				d.Schedules = []Schedule{{Cron: "0 * * * *", Timezone: "UTC"}}
			},
		},
		{
			name: "interval schedule is valid",
			mutate: func(d *Deployment) {
				d.Schedules = []Schedule{{Interval: 3600}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDeployment()
			tt.mutate(&d)

			err := ValidateDeployment(d)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateStep(t *testing.T) {
	require.NoError(t, ValidateStep(Step{
		"prefect.deployments.steps.git_clone": {"repository": "https://example.com/repo.git"},
	}))

	err := ValidateStep(Step{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStep)

	err = ValidateStep(Step{
		"one": {},
		"two": {},
	})
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestValidateDuplicates(t *testing.T) {
	a := validDeployment()
	b := validDeployment()

	// Same name with a different entrypoint is legal: names are scoped to
	// the flow namespace, not global.
	b.Entrypoint = "etl.py:etl_flow"
	m := &Manifest{Deployments: []Deployment{a, b}}
	assert.Empty(t, Validate(m))

	// Same name and same entrypoint is a collision.
	b.Entrypoint = a.Entrypoint
	m = &Manifest{Deployments: []Deployment{a, b}}
	errs := Validate(m)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrDuplicateDeployment)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	bad := validDeployment()
	bad.Entrypoint = "nope"

	worse := validDeployment()
	worse.WorkPool.Name = ""

	m := &Manifest{
		Build:       []Step{{}},
		Deployments: []Deployment{bad, worse},
	}

	errs := Validate(m)
	require.Len(t, errs, 3)
	assert.ErrorIs(t, errs[0], ErrInvalidStep)
	assert.ErrorIs(t, errs[1], ErrInvalidEntrypoint)
	assert.ErrorIs(t, errs[2], ErrMissingWorkPoolName)
}

func TestValidateSampleManifest(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	assert.Empty(t, Validate(m))
}
