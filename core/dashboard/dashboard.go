// Package dashboard aggregates program statistics for admins and instructors.
// Results are cached until a source module invalidates them or the TTL expires.
package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/certificate"
	"github.com/trezcool/hackcamp/core/chat"
	"github.com/trezcool/hackcamp/core/lesson"
	"github.com/trezcool/hackcamp/core/task"
	"github.com/trezcool/hackcamp/core/user"
)

type (
	AdminDashboard struct {
		Applications application.Stats `json:"applications"`
		UsersByRole  map[string]int    `json:"users_by_role"`
		Certificates int               `json:"certificates"`
		Channels     int               `json:"channels"`
		GeneratedAt  time.Time         `json:"generated_at"`
	}

	InstructorDashboard struct {
		Participants        int              `json:"participants"`
		Lessons             int              `json:"lessons"`
		Tasks               int              `json:"tasks"`
		SubmissionsByStatus map[string]int   `json:"submissions_by_status"`
		TaskStats           []task.TaskStats `json:"task_stats"`
		GeneratedAt         time.Time        `json:"generated_at"`
	}

	ServiceInterface interface {
		Admin(ctx context.Context) (AdminDashboard, error)
		Instructor(ctx context.Context) (InstructorDashboard, error)
	}

	Service struct {
		appSvc    application.ServiceInterface
		usrSvc    user.ServiceInterface
		certSvc   certificate.ServiceInterface
		chatSvc   chat.ServiceInterface
		lessonSvc lesson.ServiceInterface
		taskSvc   task.ServiceInterface
		cache     core.Cache
		ttl       time.Duration
		logger    core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(
	conf *core.Config,
	appSvc application.ServiceInterface,
	usrSvc user.ServiceInterface,
	certSvc certificate.ServiceInterface,
	chatSvc chat.ServiceInterface,
	lessonSvc lesson.ServiceInterface,
	taskSvc task.ServiceInterface,
	cache core.Cache,
	logger core.Logger,
) *Service {
	return &Service{
		appSvc:    appSvc,
		usrSvc:    usrSvc,
		certSvc:   certSvc,
		chatSvc:   chatSvc,
		lessonSvc: lessonSvc,
		taskSvc:   taskSvc,
		cache:     cache,
		ttl:       conf.Redis.CacheTTL,
		logger:    logger,
	}
}

// cached loads the value stored under key into dst, or computes it with build and stores it.
// Cache failures are logged and never fail the request.
func (svc *Service) cached(ctx context.Context, key string, dst interface{}, build func() error) error {
	if svc.cache != nil {
		data, err := svc.cache.Get(ctx, key)
		if err == nil {
			if err = json.Unmarshal(data, dst); err == nil {
				return nil
			}
		}
		if err != core.ErrCacheMiss {
			svc.logger.Warn("reading cache key "+key, err)
		}
	}

	if err := build(); err != nil {
		return err
	}

	if svc.cache != nil && svc.ttl > 0 {
		data, err := json.Marshal(dst)
		if err == nil {
			err = svc.cache.Set(ctx, key, data, svc.ttl)
		}
		if err != nil {
			svc.logger.Warn("writing cache key "+key, err)
		}
	}
	return nil
}

func (svc *Service) Admin(ctx context.Context) (AdminDashboard, error) {
	var dash AdminDashboard
	err := svc.cached(ctx, core.CacheKeyAdminDashboard, &dash, func() error {
		var err error
		if dash.Applications, err = svc.appSvc.Stats(ctx); err != nil {
			return errors.Wrap(err, "application stats")
		}
		if dash.UsersByRole, err = svc.usrSvc.CountByRole(ctx); err != nil {
			return errors.Wrap(err, "counting users")
		}
		if dash.Certificates, err = svc.certSvc.Count(ctx); err != nil {
			return errors.Wrap(err, "counting certificates")
		}
		if dash.Channels, err = svc.chatSvc.CountChannels(ctx); err != nil {
			return errors.Wrap(err, "counting channels")
		}
		dash.GeneratedAt = time.Now().UTC()
		return nil
	})
	return dash, err
}

func (svc *Service) Instructor(ctx context.Context) (InstructorDashboard, error) {
	var dash InstructorDashboard
	err := svc.cached(ctx, core.CacheKeyInstructorDashboard, &dash, func() error {
		byRole, err := svc.usrSvc.CountByRole(ctx)
		if err != nil {
			return errors.Wrap(err, "counting users")
		}
		dash.Participants = byRole[user.RoleParticipant]
		if dash.Lessons, err = svc.lessonSvc.Count(ctx); err != nil {
			return errors.Wrap(err, "counting lessons")
		}
		if dash.Tasks, err = svc.taskSvc.CountTasks(ctx); err != nil {
			return errors.Wrap(err, "counting tasks")
		}
		if dash.SubmissionsByStatus, err = svc.taskSvc.CountSubmissionsByStatus(ctx); err != nil {
			return errors.Wrap(err, "counting submissions")
		}
		if dash.TaskStats, err = svc.taskSvc.TaskStats(ctx); err != nil {
			return errors.Wrap(err, "computing task stats")
		}
		dash.GeneratedAt = time.Now().UTC()
		return nil
	})
	return dash, err
}
