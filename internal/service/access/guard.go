// Package access decides which account may read or change a job.
package access

import (
	"github.com/jwalitptl/dentallab-api/internal/model"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

// CanView holds when the actor is the job's lab or the job's clinic,
// regardless of which side created it.
func CanView(actor *model.Account, job *model.Job) bool {
	if actor == nil || job == nil {
		return false
	}
	if labID, ok := actor.LabID(); ok && labID == job.LabID {
		return true
	}
	if clinicID, ok := actor.ClinicID(); ok && clinicID == job.ClinicID {
		return true
	}
	return false
}

// CanMutateStatus holds only for the owning lab. Clinics are always denied.
func CanMutateStatus(actor *model.Account, job *model.Job) bool {
	labID, ok := actor.LabID()
	return ok && job != nil && labID == job.LabID
}

// CanCreate checks that the actor creates jobs only on its own side.
func CanCreate(actor *model.Account, req *model.CreateJobRequest) bool {
	if actor == nil || req == nil {
		return false
	}
	if clinicID, ok := actor.ClinicID(); ok {
		return clinicID == req.ClinicID
	}
	if labID, ok := actor.LabID(); ok {
		return labID == req.LabID
	}
	return false
}

// RequireView returns Unauthorized without an actor and Forbidden when the
// actor may not see the job.
func RequireView(actor *model.Account, job *model.Job) error {
	if actor == nil {
		return apperrors.Unauthorized(nil)
	}
	if !CanView(actor, job) {
		return apperrors.Forbidden("job belongs to another lab or clinic")
	}
	return nil
}

// RequireLab returns the laboratory of a lab actor.
func RequireLab(actor *model.Account) (*model.Laboratory, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized(nil)
	}
	if !actor.IsLab() {
		return nil, apperrors.Forbidden("only laboratories may perform this action")
	}
	return actor.Lab, nil
}

// RequireClinic returns the clinic of a clinic actor.
func RequireClinic(actor *model.Account) (*model.Clinic, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized(nil)
	}
	if !actor.IsClinic() {
		return nil, apperrors.Forbidden("only clinics may perform this action")
	}
	return actor.Clinic, nil
}
