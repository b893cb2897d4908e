package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobFilter struct {
	// ClientID restricts to jobs one client posted. uuid.Nil lists every job.
	ClientID uuid.UUID
	Status   *JobStatus
	Page     int
	PerPage  int
}

func (c *Client) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	var s Service
	if err := c.db.WithContext(ctx).Where("id = ?", id).Take(&s).Error; err != nil {
		return nil, translate("get service", err)
	}
	return &s, nil
}

func (c *Client) CreateJob(ctx context.Context, j *Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.Must(uuid.NewV7())
	}
	return translate("create job", c.db.WithContext(ctx).Create(j).Error)
}

func (c *Client) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	var j Job
	if err := c.db.WithContext(ctx).Where("id = ?", id).Take(&j).Error; err != nil {
		return nil, translate("get job", err)
	}
	return &j, nil
}

func (c *Client) ListJobs(ctx context.Context, f JobFilter) ([]Job, int64, error) {
	q := c.db.WithContext(ctx).Model(&Job{})
	if f.ClientID != uuid.Nil {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count jobs", err)
	}

	offset, limit := Page(f.Page, f.PerPage)
	var out []Job
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, translate("list jobs", err)
	}
	return out, total, nil
}

// CreateJobApplication fails with ErrDuplicate when the professional already
// applied to the job.
func (c *Client) CreateJobApplication(ctx context.Context, a *JobApplication) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.Must(uuid.NewV7())
	}
	return translate("create job application", c.db.WithContext(ctx).Create(a).Error)
}

func (c *Client) GetJobApplication(ctx context.Context, jobID, professionalID uuid.UUID) (*JobApplication, error) {
	var a JobApplication
	err := c.db.WithContext(ctx).
		Where("job_id = ? AND professional_id = ?", jobID, professionalID).
		Take(&a).Error
	if err != nil {
		return nil, translate("get job application", err)
	}
	return &a, nil
}

func (c *Client) ListJobApplications(ctx context.Context, jobID uuid.UUID, page, perPage int) ([]JobApplication, int64, error) {
	q := c.db.WithContext(ctx).Model(&JobApplication{}).Where("job_id = ?", jobID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count job applications", err)
	}

	offset, limit := Page(page, perPage)
	var out []JobApplication
	if err := q.Order("created_at ASC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, translate("list job applications", err)
	}
	return out, total, nil
}

// RejectJobApplication moves a pending application to rejected.
func (c *Client) RejectJobApplication(ctx context.Context, jobID, professionalID uuid.UUID) (*JobApplication, error) {
	var out JobApplication
	res := c.db.WithContext(ctx).Model(&out).Clauses(clause.Returning{}).
		Where("job_id = ? AND professional_id = ? AND status = ?", jobID, professionalID, ApplicationPending).
		Updates(map[string]any{"status": ApplicationRejected, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, translate("reject job application", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := c.GetJobApplication(ctx, jobID, professionalID); err != nil {
			return nil, err
		}
		return nil, translate("reject job application", ErrStaleState)
	}
	return &out, nil
}

// AcceptJobApplication moves the job from open to in-progress, accepts the
// professional's pending application and inserts the appointment with its
// payment, all in one transaction. A job that is no longer open, or an
// application that is no longer pending, returns ErrStaleState.
func (c *Client) AcceptJobApplication(ctx context.Context, jobID, professionalID uuid.UUID, a *Appointment, p *Payment) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", jobID, JobOpen).
			Updates(map[string]any{
				"status":                   JobInProgress,
				"accepted_professional_id": professionalID,
				"updated_at":               now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return staleOrMissing(tx, &Job{}, "id = ?", jobID)
		}

		res = tx.Model(&JobApplication{}).
			Where("job_id = ? AND professional_id = ? AND status = ?", jobID, professionalID, ApplicationPending).
			Updates(map[string]any{"status": ApplicationAccepted, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return staleOrMissing(tx, &JobApplication{}, "job_id = ? AND professional_id = ?", jobID, professionalID)
		}

		if err := tx.Create(a).Error; err != nil {
			return err
		}
		p.AppointmentID = a.ID
		return tx.Create(p).Error
	})
	return translate("accept job application", err)
}

// staleOrMissing explains a conditional update that matched nothing.
func staleOrMissing(tx *gorm.DB, model any, cond string, args ...any) error {
	var n int64
	if err := tx.Model(model).Where(cond, args...).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStaleState
}
